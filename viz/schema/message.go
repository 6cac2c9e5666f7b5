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
	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/viz/model"
	"github.com/pingcap/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Message builds a dynamic protobuf message by field name.
//
// Builder calls never fail immediately: the first error is kept and every
// later call becomes a no-op. Err and Marshal report it.
type Message struct {
	msg protoreflect.Message
	err *error
}

func newMessage(msg protoreflect.Message) *Message {
	return &Message{msg: msg, err: new(error)}
}

// Err returns the first error hit while building the message.
func (m *Message) Err() error {
	return *m.err
}

// Interface returns the built message.
func (m *Message) Interface() proto.Message {
	return m.msg.Interface()
}

// Marshal encodes the built message in protobuf wire format.
func (m *Message) Marshal() ([]byte, error) {
	if *m.err != nil {
		return nil, *m.err
	}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(m.msg.Interface())
	return data, errors.Trace(err)
}

func (m *Message) fail(err error) {
	if *m.err == nil {
		*m.err = err
	}
}

func (m *Message) field(name string) protoreflect.FieldDescriptor {
	if *m.err != nil {
		return nil
	}
	fd := m.msg.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		m.fail(cerror.ErrSchemaField.GenWithStackByArgs(m.msg.Descriptor().FullName(), name))
	}
	return fd
}

// Set sets a singular scalar or enum field. Enums accept their value name or
// number.
func (m *Message) Set(name string, v any) *Message {
	fd := m.field(name)
	if fd == nil {
		return m
	}
	if fd.IsList() || fd.IsMap() || fd.Message() != nil {
		m.fail(cerror.ErrSchemaValue.GenWithStackByArgs(v, fd.FullName()))
		return m
	}
	val, err := scalarValue(fd, v)
	if err != nil {
		m.fail(err)
		return m
	}
	m.msg.Set(fd, val)
	return m
}

// Add appends a value to a repeated scalar field.
func (m *Message) Add(name string, v any) *Message {
	fd := m.field(name)
	if fd == nil {
		return m
	}
	if !fd.IsList() || fd.Message() != nil {
		m.fail(cerror.ErrSchemaValue.GenWithStackByArgs(v, fd.FullName()))
		return m
	}
	val, err := scalarValue(fd, v)
	if err != nil {
		m.fail(err)
		return m
	}
	m.msg.Mutable(fd).List().Append(val)
	return m
}

// Sub returns the singular message field, creating it if unset.
func (m *Message) Sub(name string) *Message {
	fd := m.field(name)
	if fd == nil {
		return m
	}
	if fd.IsList() || fd.Message() == nil {
		m.fail(cerror.ErrSchemaValue.GenWithStackByArgs(name, fd.FullName()))
		return m
	}
	return &Message{msg: m.msg.Mutable(fd).Message(), err: m.err}
}

// Append appends a new element to a repeated message field and returns it.
func (m *Message) Append(name string) *Message {
	fd := m.field(name)
	if fd == nil {
		return m
	}
	if !fd.IsList() || fd.Message() == nil {
		m.fail(cerror.ErrSchemaValue.GenWithStackByArgs(name, fd.FullName()))
		return m
	}
	return &Message{msg: m.msg.Mutable(fd).List().AppendMutable().Message(), err: m.err}
}

// SetTime sets a google.protobuf.Timestamp field from unix nanoseconds.
func (m *Message) SetTime(name string, ns int64) *Message {
	sec, nsec := model.SplitNanos(ns)
	m.Sub(name).Set("seconds", sec).Set("nanos", nsec)
	return m
}

// SetDuration sets a google.protobuf.Duration field from nanoseconds.
func (m *Message) SetDuration(name string, ns int64) *Message {
	sec, nsec := model.SplitNanos(ns)
	m.Sub(name).Set("seconds", sec).Set("nanos", nsec)
	return m
}

// SetXYZ sets the x, y and z fields of a nested vector or point.
func (m *Message) SetXYZ(name string, x, y, z float64) *Message {
	m.Sub(name).Set("x", x).Set("y", y).Set("z", z)
	return m
}

// SetRGBA sets the r, g, b and a fields of a nested color.
func (m *Message) SetRGBA(name string, r, g, b, a float64) *Message {
	m.Sub(name).Set("r", r).Set("g", g).Set("b", b).Set("a", a)
	return m
}

func scalarValue(fd protoreflect.FieldDescriptor, v any) (protoreflect.Value, error) {
	invalid := func() (protoreflect.Value, error) {
		return protoreflect.Value{}, cerror.ErrSchemaValue.GenWithStackByArgs(v, fd.FullName())
	}
	switch fd.Kind() {
	case protoreflect.DoubleKind:
		if f, ok := toFloat(v); ok {
			return protoreflect.ValueOfFloat64(f), nil
		}
	case protoreflect.FloatKind:
		if f, ok := toFloat(v); ok {
			return protoreflect.ValueOfFloat32(float32(f)), nil
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if i, ok := toInt(v); ok {
			return protoreflect.ValueOfInt32(int32(i)), nil
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if i, ok := toInt(v); ok {
			return protoreflect.ValueOfInt64(i), nil
		}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if i, ok := toInt(v); ok && i >= 0 {
			return protoreflect.ValueOfUint32(uint32(i)), nil
		}
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if i, ok := toInt(v); ok && i >= 0 {
			return protoreflect.ValueOfUint64(uint64(i)), nil
		}
	case protoreflect.BoolKind:
		if b, ok := v.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}
	case protoreflect.StringKind:
		if s, ok := v.(string); ok {
			return protoreflect.ValueOfString(s), nil
		}
	case protoreflect.BytesKind:
		if b, ok := v.([]byte); ok {
			return protoreflect.ValueOfBytes(b), nil
		}
	case protoreflect.EnumKind:
		if s, ok := v.(string); ok {
			if ev := fd.Enum().Values().ByName(protoreflect.Name(s)); ev != nil {
				return protoreflect.ValueOfEnum(ev.Number()), nil
			}
			return invalid()
		}
		if i, ok := toInt(v); ok {
			return protoreflect.ValueOfEnum(protoreflect.EnumNumber(i)), nil
		}
	}
	return invalid()
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	case uint:
		return int64(x), true
	}
	return 0, false
}
