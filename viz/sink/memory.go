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

package sink

import (
	"context"
	"sync"

	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/schema"
	"github.com/pingcap/errors"
)

// MemorySink keeps every result in memory.
type MemorySink struct {
	mu      sync.Mutex
	table   map[string]schema.Schema
	results []model.Result
	opened  bool
	closed  bool

	// WriteHook, if set, is called before a result is stored. A non-nil
	// error fails the write.
	WriteHook func(model.Result) error
}

var _ Sink = (*MemorySink)(nil)

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// SetSchemaTable implements Sink.
func (s *MemorySink) SetSchemaTable(table map[string]schema.Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = table
}

// Open implements Sink.
func (s *MemorySink) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cerror.ErrSinkClosed.GenWithStackByArgs()
	}
	s.opened = true
	return errors.Trace(ctx.Err())
}

// Write implements Sink.
func (s *MemorySink) Write(result model.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cerror.ErrSinkClosed.GenWithStackByArgs()
	}
	if !s.opened {
		return cerror.ErrSinkNotReady.GenWithStackByArgs("memory")
	}
	if s.table != nil {
		if _, ok := s.table[result.Topic]; !ok {
			return cerror.ErrSinkUnknownTopic.GenWithStackByArgs(result.Topic)
		}
	}
	if s.WriteHook != nil {
		if err := s.WriteHook(result); err != nil {
			return cerror.WrapError(cerror.ErrSinkWrite, err)
		}
	}
	s.results = append(s.results, result)
	return nil
}

// Close implements Sink.
func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Results returns a copy of the written results.
func (s *MemorySink) Results() []model.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Result(nil), s.results...)
}

// SchemaTable returns the table handed to the sink.
func (s *MemorySink) SchemaTable() map[string]schema.Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table
}

// IsClosed reports whether Close was called.
func (s *MemorySink) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
