// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package schema

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	timestampType = ".google.protobuf.Timestamp"
	durationType  = ".google.protobuf.Duration"
)

type fieldOpt func(*descriptorpb.FieldDescriptorProto)

func repeated(f *descriptorpb.FieldDescriptorProto) {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
}

func field(
	name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, opts ...fieldOpt,
) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func double(name string, number int32, opts ...fieldOpt) *descriptorpb.FieldDescriptorProto {
	return field(name, number, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, opts...)
}

func str(name string, number int32, opts ...fieldOpt) *descriptorpb.FieldDescriptorProto {
	return field(name, number, descriptorpb.FieldDescriptorProto_TYPE_STRING, opts...)
}

func msgField(name string, number int32, typeName string, opts ...fieldOpt) *descriptorpb.FieldDescriptorProto {
	f := field(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, opts...)
	f.TypeName = proto.String(typeName)
	return f
}

func enumField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := field(name, number, descriptorpb.FieldDescriptorProto_TYPE_ENUM)
	f.TypeName = proto.String(typeName)
	return f
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func enum(name string, values ...string) *descriptorpb.EnumDescriptorProto {
	e := &descriptorpb.EnumDescriptorProto{Name: proto.String(name)}
	for i, v := range values {
		e.Value = append(e.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v),
			Number: proto.Int32(int32(i)),
		})
	}
	return e
}

func withEnums(m *descriptorpb.DescriptorProto, enums ...*descriptorpb.EnumDescriptorProto) *descriptorpb.DescriptorProto {
	m.EnumType = append(m.EnumType, enums...)
	return m
}

// foxgloveFile describes the subset of the foxglove visualization schemas
// produced by the visualizers. Field numbers follow the upstream definitions.
func foxgloveFile() *descriptorpb.FileDescriptorProto {
	const (
		fixed32 = descriptorpb.FieldDescriptorProto_TYPE_FIXED32
		boolean = descriptorpb.FieldDescriptorProto_TYPE_BOOL
		bytes   = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	)
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("foxglove/schemas.proto"),
		Package: proto.String("foxglove"),
		Dependency: []string{
			"google/protobuf/timestamp.proto",
			"google/protobuf/duration.proto",
		},
		Syntax: proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			message("Vector3", double("x", 1), double("y", 2), double("z", 3)),
			message("Quaternion", double("x", 1), double("y", 2), double("z", 3), double("w", 4)),
			message("Point2", double("x", 1), double("y", 2)),
			message("Point3", double("x", 1), double("y", 2), double("z", 3)),
			message("Color", double("r", 1), double("g", 2), double("b", 3), double("a", 4)),
			message("Pose",
				msgField("position", 1, ".foxglove.Vector3"),
				msgField("orientation", 2, ".foxglove.Quaternion"),
			),
			message("FrameTransform",
				msgField("timestamp", 1, timestampType),
				str("parent_frame_id", 2),
				str("child_frame_id", 3),
				msgField("translation", 4, ".foxglove.Vector3"),
				msgField("rotation", 5, ".foxglove.Quaternion"),
			),
			message("FrameTransforms",
				msgField("transforms", 1, ".foxglove.FrameTransform", repeated),
			),
			message("SpherePrimitive",
				msgField("pose", 1, ".foxglove.Pose"),
				msgField("size", 2, ".foxglove.Vector3"),
				msgField("color", 3, ".foxglove.Color"),
			),
			withEnums(message("LinePrimitive",
				enumField("type", 1, ".foxglove.LinePrimitive.Type"),
				msgField("pose", 2, ".foxglove.Pose"),
				double("thickness", 3),
				field("scale_invariant", 4, boolean),
				msgField("points", 5, ".foxglove.Point3", repeated),
				msgField("color", 6, ".foxglove.Color"),
				msgField("colors", 7, ".foxglove.Color", repeated),
				field("indices", 8, fixed32, repeated),
			), enum("Type", "LINE_STRIP", "LINE_LOOP", "LINE_LIST")),
			message("SceneEntity",
				msgField("timestamp", 1, timestampType),
				str("frame_id", 2),
				str("id", 3),
				msgField("lifetime", 4, durationType),
				field("frame_locked", 5, boolean),
				msgField("spheres", 9, ".foxglove.SpherePrimitive", repeated),
				msgField("lines", 11, ".foxglove.LinePrimitive", repeated),
			),
			message("SceneUpdate",
				msgField("entities", 2, ".foxglove.SceneEntity", repeated),
			),
			message("TextAnnotation",
				msgField("timestamp", 1, timestampType),
				msgField("position", 2, ".foxglove.Point2"),
				str("text", 3),
				double("font_size", 4),
				msgField("text_color", 5, ".foxglove.Color"),
				msgField("background_color", 6, ".foxglove.Color"),
			),
			message("ImageAnnotations",
				msgField("texts", 3, ".foxglove.TextAnnotation", repeated),
			),
			message("RawAudio",
				msgField("timestamp", 1, timestampType),
				field("data", 2, bytes),
				str("format", 3),
				field("sample_rate", 4, fixed32),
				field("number_of_channels", 5, fixed32),
			),
			withEnums(message("PackedElementField",
				str("name", 1),
				field("offset", 2, fixed32),
				enumField("type", 3, ".foxglove.PackedElementField.NumericType"),
			), enum("NumericType",
				"UNKNOWN", "UINT8", "INT8", "UINT16", "INT16",
				"UINT32", "INT32", "FLOAT32", "FLOAT64")),
			message("PointCloud",
				msgField("timestamp", 1, timestampType),
				str("frame_id", 2),
				msgField("pose", 3, ".foxglove.Pose"),
				field("point_stride", 4, fixed32),
				msgField("fields", 5, ".foxglove.PackedElementField", repeated),
				field("data", 6, bytes),
			),
		},
	}
}

func lightwheelFile() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String("lightwheel/annotation.proto"),
		Package:    proto.String("lightwheel"),
		Dependency: []string{"google/protobuf/timestamp.proto"},
		Syntax:     proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			message("SubtaskAnnotation",
				str("data", 1),
				msgField("timestamp", 2, timestampType),
			),
		},
	}
}
