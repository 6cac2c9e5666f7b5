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

package pipeline

// chunker groups items into slices of size items, keeping their order.
type chunker[T any] struct {
	size int
	buf  []T
}

func newChunker[T any](size int) *chunker[T] {
	if size <= 0 {
		size = 1
	}
	return &chunker[T]{size: size, buf: make([]T, 0, size)}
}

// add appends item and returns the pending chunk once it is full.
func (c *chunker[T]) add(item T) []T {
	c.buf = append(c.buf, item)
	if len(c.buf) < c.size {
		return nil
	}
	full := c.buf
	c.buf = make([]T, 0, c.size)
	return full
}

// flush returns the last, possibly short, chunk. It returns nil when
// nothing is pending.
func (c *chunker[T]) flush() []T {
	if len(c.buf) == 0 {
		return nil
	}
	rest := c.buf
	c.buf = make([]T, 0, c.size)
	return rest
}
