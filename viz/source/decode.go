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

package source

import (
	"bytes"
	"strconv"

	"github.com/foxglove/mcap/go/mcap"
	"github.com/goccy/go-json"
	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/pingcap/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Message encodings of input channels.
const (
	EncodingProtobuf = "protobuf"
	EncodingJSON     = "json"
)

// decoder turns MCAP messages into Go values. Protobuf messages are decoded
// with the descriptors embedded in their schema, then mapped onto the target
// through their JSON form, so one set of field names serves both encodings.
type decoder struct {
	descriptors map[uint16]protoreflect.MessageDescriptor
}

func newDecoder() *decoder {
	return &decoder{descriptors: make(map[uint16]protoreflect.MessageDescriptor)}
}

// decode decodes m into v.
func (d *decoder) decode(m message, v any) error {
	data, err := d.toJSON(m)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return cerror.WrapError(cerror.ErrPayloadDecode, err, m.channel.Topic)
	}
	return nil
}

// decodeGeneric decodes m into a map.
func (d *decoder) decodeGeneric(m message) (map[string]any, error) {
	v := make(map[string]any)
	if err := d.decode(m, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (d *decoder) toJSON(m message) ([]byte, error) {
	switch m.channel.MessageEncoding {
	case EncodingJSON:
		return m.msg.Data, nil
	case EncodingProtobuf:
		md, err := d.descriptor(m.schema)
		if err != nil {
			return nil, cerror.WrapError(cerror.ErrPayloadDecode, err, m.channel.Topic)
		}
		msg := dynamicpb.NewMessage(md)
		if err := proto.Unmarshal(m.msg.Data, msg); err != nil {
			return nil, cerror.WrapError(cerror.ErrPayloadDecode, err, m.channel.Topic)
		}
		data, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(msg)
		if err != nil {
			return nil, cerror.WrapError(cerror.ErrPayloadDecode, err, m.channel.Topic)
		}
		return data, nil
	}
	return nil, cerror.ErrUnsupportedEncoding.GenWithStackByArgs(m.channel.MessageEncoding, m.channel.Topic)
}

func (d *decoder) descriptor(schema *mcap.Schema) (protoreflect.MessageDescriptor, error) {
	if schema == nil {
		return nil, errors.New("protobuf channel without schema")
	}
	if md, ok := d.descriptors[schema.ID]; ok {
		return md, nil
	}
	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(schema.Data, set); err != nil {
		return nil, errors.Annotatef(err, "parse schema %s", schema.Name)
	}
	files, err := protodesc.NewFiles(set)
	if err != nil {
		return nil, errors.Annotatef(err, "parse schema %s", schema.Name)
	}
	desc, err := files.FindDescriptorByName(protoreflect.FullName(schema.Name))
	if err != nil {
		return nil, errors.Annotatef(err, "find message %s", schema.Name)
	}
	md, ok := desc.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, errors.Errorf("%s is not a message", schema.Name)
	}
	d.descriptors[schema.ID] = md
	return md, nil
}

// int64Value accepts JSON numbers as well as the quoted form protojson uses
// for 64-bit integers.
type int64Value int64

func (i *int64Value) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*i = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil {
			return errors.Trace(err)
		}
		v = int64(f)
	}
	*i = int64Value(v)
	return nil
}
