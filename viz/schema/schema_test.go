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
	"testing"

	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	for _, ident := range []string{
		FrameTransforms, SceneUpdate, ImageAnnotations, RawAudio,
		PointCloud, PackedElementField, SubtaskAnnotation,
	} {
		s, err := Lookup(ident)
		require.NoError(t, err, ident)
		require.Equal(t, ident, s.Name)
		require.Equal(t, EncodingProtobuf, s.Encoding)
		require.NotEmpty(t, s.Data)
		require.Equal(t, protoreflect.FullName(ident), s.Descriptor().FullName())
	}

	s, err := Lookup(Time)
	require.NoError(t, err)
	require.Equal(t, "google.protobuf.Timestamp", s.Name)
	s, err = Lookup(Duration)
	require.NoError(t, err)
	require.Equal(t, "google.protobuf.Duration", s.Name)

	_, err = Lookup("foxglove.Unknown")
	require.True(t, cerror.Is(err, cerror.ErrSchemaNotFound))
	_, err = New("foxglove.Unknown")
	require.Error(t, err)

	require.Contains(t, Identifiers(), SceneUpdate)
	require.Contains(t, Identifiers(), Time)
}

func TestSchemaDataIsSelfContained(t *testing.T) {
	t.Parallel()

	s, err := Lookup(SceneUpdate)
	require.NoError(t, err)

	set := &descriptorpb.FileDescriptorSet{}
	require.NoError(t, proto.Unmarshal(s.Data, set))
	// dependencies come first
	require.Equal(t, "foxglove/schemas.proto", set.File[len(set.File)-1].GetName())

	files, err := protodesc.NewFiles(set)
	require.NoError(t, err)
	d, err := files.FindDescriptorByName("foxglove.SceneUpdate")
	require.NoError(t, err)
	require.NotNil(t, d)
}

func TestMessageBuilder(t *testing.T) {
	t.Parallel()

	msg, err := New(SceneUpdate)
	require.NoError(t, err)
	entity := msg.Append("entities")
	entity.SetTime("timestamp", 1_500_000_000).
		Set("frame_id", "world").
		Set("id", "body").
		SetDuration("lifetime", 100_000_000).
		Set("frame_locked", true)
	line := entity.Append("lines")
	line.Set("type", "LINE_LIST").Set("thickness", 0.01)
	line.SetRGBA("color", 1, 0.2, 0.2, 1)
	line.Append("points").Set("x", 1).Set("y", 2.5).Set("z", float32(3))
	line.Add("indices", 7)
	require.NoError(t, msg.Err())

	data, err := msg.Marshal()
	require.NoError(t, err)

	s, err := Lookup(SceneUpdate)
	require.NoError(t, err)
	decoded, err := s.Unmarshal(data)
	require.NoError(t, err)
	require.True(t, proto.Equal(msg.Interface(), decoded))

	js, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(decoded)
	require.NoError(t, err)
	require.JSONEq(t, `{"entities":[{
		"timestamp":"1970-01-01T00:00:01.500Z",
		"frame_id":"world",
		"id":"body",
		"lifetime":"0.100s",
		"frame_locked":true,
		"lines":[{
			"type":"LINE_LIST",
			"thickness":0.01,
			"color":{"r":1,"g":0.2,"b":0.2,"a":1},
			"points":[{"x":1,"y":2.5,"z":3}],
			"indices":[7]
		}]
	}]}`, string(js))
}

func TestMessageBuilderStickyError(t *testing.T) {
	t.Parallel()

	msg, err := New(RawAudio)
	require.NoError(t, err)
	msg.Set("no_such_field", 1).Set("format", "pcm-s16")
	require.True(t, cerror.Is(msg.Err(), cerror.ErrSchemaField))
	_, err = msg.Marshal()
	require.Error(t, err)

	msg, err = New(RawAudio)
	require.NoError(t, err)
	msg.Set("sample_rate", "fast")
	require.True(t, cerror.Is(msg.Err(), cerror.ErrSchemaValue))

	msg, err = New(RawAudio)
	require.NoError(t, err)
	msg.Set("sample_rate", -1)
	require.Error(t, msg.Err())

	msg, err = New(SceneUpdate)
	require.NoError(t, err)
	msg.Set("entities", 1)
	require.Error(t, msg.Err())

	msg, err = New(SceneUpdate)
	require.NoError(t, err)
	msg.Append("entities").Set("lines", "x")
	require.Error(t, msg.Err())
}

func TestMessageBuilderEnumNumber(t *testing.T) {
	t.Parallel()

	msg, err := New(PackedElementField)
	require.NoError(t, err)
	msg.Set("name", "x").Set("offset", 0).Set("type", 7)
	require.NoError(t, msg.Err())
	js, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(msg.Interface())
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"x","type":"FLOAT32"}`, string(js))
}
