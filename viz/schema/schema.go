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
	"sort"
	"sync"

	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/pingcap/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// EncodingProtobuf is the MCAP schema and message encoding of every output.
const EncodingProtobuf = "protobuf"

// Schema identifiers used by the visualizers.
const (
	FrameTransforms    = "foxglove.FrameTransforms"
	SceneUpdate        = "foxglove.SceneUpdate"
	ImageAnnotations   = "foxglove.ImageAnnotations"
	RawAudio           = "foxglove.RawAudio"
	PointCloud         = "foxglove.PointCloud"
	PackedElementField = "foxglove.PackedElementField"
	SubtaskAnnotation  = "lightwheel.SubtaskAnnotation"
	Time               = "builtins/Time"
	Duration           = "builtins/Duration"
)

var aliases = map[string]string{
	Time:     "google.protobuf.Timestamp",
	Duration: "google.protobuf.Duration",
}

// Schema is an output message type, ready to be registered in an MCAP file.
type Schema struct {
	// Name is the fully qualified protobuf message name.
	Name     string
	Encoding string
	// Data is a serialized FileDescriptorSet holding the message file and
	// all of its dependencies.
	Data []byte

	desc protoreflect.MessageDescriptor
}

// Descriptor returns the message descriptor of the schema.
func (s Schema) Descriptor() protoreflect.MessageDescriptor {
	return s.desc
}

// New returns an empty message of the schema.
func (s Schema) New() *Message {
	return newMessage(dynamicpb.NewMessage(s.desc))
}

// Unmarshal decodes data encoded with the schema.
func (s Schema) Unmarshal(data []byte) (proto.Message, error) {
	msg := dynamicpb.NewMessage(s.desc)
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, errors.Trace(err)
	}
	return msg, nil
}

var (
	loadOnce sync.Once
	schemas  map[string]Schema
	loadErr  error
)

func load() (map[string]Schema, error) {
	loadOnce.Do(func() {
		schemas, loadErr = build()
	})
	return schemas, loadErr
}

// Lookup returns the schema registered under the identifier.
func Lookup(ident string) (Schema, error) {
	all, err := load()
	if err != nil {
		return Schema{}, err
	}
	s, ok := all[ident]
	if !ok {
		return Schema{}, cerror.ErrSchemaNotFound.GenWithStackByArgs(ident)
	}
	return s, nil
}

// New returns an empty message of the identified schema.
func New(ident string) (*Message, error) {
	s, err := Lookup(ident)
	if err != nil {
		return nil, err
	}
	return s.New(), nil
}

// Identifiers returns every known schema identifier, sorted.
func Identifiers() []string {
	all, err := load()
	if err != nil {
		return nil
	}
	idents := make([]string, 0, len(all))
	for ident := range all {
		idents = append(idents, ident)
	}
	sort.Strings(idents)
	return idents
}

func build() (map[string]Schema, error) {
	files := new(protoregistry.Files)
	for _, fd := range []protoreflect.FileDescriptor{
		timestamppb.File_google_protobuf_timestamp_proto,
		durationpb.File_google_protobuf_duration_proto,
	} {
		if err := files.RegisterFile(fd); err != nil {
			return nil, cerror.WrapError(cerror.ErrSchemaBuild, err, fd.Path())
		}
	}
	for _, fdp := range []*descriptorpb.FileDescriptorProto{foxgloveFile(), lightwheelFile()} {
		fd, err := protodesc.NewFile(fdp, files)
		if err != nil {
			return nil, cerror.WrapError(cerror.ErrSchemaBuild, err, fdp.GetName())
		}
		if err := files.RegisterFile(fd); err != nil {
			return nil, cerror.WrapError(cerror.ErrSchemaBuild, err, fdp.GetName())
		}
	}

	result := make(map[string]Schema)
	var buildErr error
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		data, err := marshalFileSet(fd)
		if err != nil {
			buildErr = cerror.WrapError(cerror.ErrSchemaBuild, err, fd.Path())
			return false
		}
		msgs := fd.Messages()
		for i := 0; i < msgs.Len(); i++ {
			md := msgs.Get(i)
			result[string(md.FullName())] = Schema{
				Name:     string(md.FullName()),
				Encoding: EncodingProtobuf,
				Data:     data,
				desc:     md,
			}
		}
		return true
	})
	if buildErr != nil {
		return nil, buildErr
	}
	for alias, name := range aliases {
		s, ok := result[name]
		if !ok {
			return nil, cerror.ErrSchemaNotFound.GenWithStackByArgs(name)
		}
		result[alias] = s
	}
	return result, nil
}

// marshalFileSet serializes fd and its transitive imports, dependencies first.
func marshalFileSet(fd protoreflect.FileDescriptor) ([]byte, error) {
	set := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]struct{})
	var visit func(f protoreflect.FileDescriptor)
	visit = func(f protoreflect.FileDescriptor) {
		if _, ok := seen[f.Path()]; ok {
			return
		}
		seen[f.Path()] = struct{}{}
		imports := f.Imports()
		for i := 0; i < imports.Len(); i++ {
			visit(imports.Get(i).FileDescriptor)
		}
		set.File = append(set.File, protodesc.ToFileDescriptorProto(f))
	}
	visit(fd)
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(set)
	return data, errors.Trace(err)
}
