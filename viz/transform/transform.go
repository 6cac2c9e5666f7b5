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

package transform

import (
	"strconv"

	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/viz/model"
)

// Transform converts the records of one source topic into visualization
// outputs.
//
// A Transform instance is shared by every worker of a pipeline, so
// Transform must be safe for concurrent use.
type Transform interface {
	// Outputs maps every output topic to its schema identifier.
	Outputs() map[string]string
	// ListenTo returns the topics whose latest payload is passed to
	// Transform as correlated arguments, in this order.
	ListenTo() []string
	// Transform converts one record. correlated holds one payload per
	// ListenTo topic, nil if the topic has not been seen yet.
	Transform(payload any, ts int64, correlated ...any) ([]model.Emit, error)
}

// Factory creates a Transform for a concrete source topic.
type Factory func(topic string, params Params) (Transform, error)

// Params are the string parameters a source advertises to the transforms
// of its topics.
type Params map[string]string

// String returns the named parameter or def.
func (p Params) String(name, def string) string {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Bool returns the named parameter parsed as a bool, or def if unset.
func (p Params) Bool(name string, def bool) (bool, error) {
	v, ok := p[name]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, cerror.WrapError(cerror.ErrTransformInvalidParam, err, name, v)
	}
	return b, nil
}

// Int returns the named parameter parsed as an int, or def if unset.
func (p Params) Int(name string, def int) (int, error) {
	v, ok := p[name]
	if !ok || v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, cerror.WrapError(cerror.ErrTransformInvalidParam, err, name, v)
	}
	return i, nil
}

// Merge returns a copy of p overridden by other.
func (p Params) Merge(other Params) Params {
	merged := make(Params, len(p)+len(other))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}
