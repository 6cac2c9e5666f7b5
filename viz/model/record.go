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

package model

import (
	"fmt"
	"math"
)

// InitializeTopic is the topic of the sentinel record emitted ahead of every
// merged stream, so transforms can set themselves up before real data arrives.
const InitializeTopic = "initialize"

// Record is one topic-addressed message of an input source.
// Payload is only interpreted by the transforms registered for Topic.
type Record struct {
	Topic     string
	Payload   any
	Timestamp int64
}

// String implements fmt.Stringer.
func (r Record) String() string {
	return fmt.Sprintf("Record{topic: %s, ts: %d}", r.Topic, r.Timestamp)
}

// Emit is one output produced by a transform.
type Emit struct {
	Topic   string
	Payload any
	// Timestamp overrides the input record timestamp when HasTimestamp is set.
	Timestamp    int64
	HasTimestamp bool
}

// NewEmit creates an Emit stamped with the input record timestamp.
func NewEmit(topic string, payload any) Emit {
	return Emit{Topic: topic, Payload: payload}
}

// NewEmitAt creates an Emit with its own timestamp.
func NewEmitAt(topic string, payload any, ts int64) Emit {
	return Emit{Topic: topic, Payload: payload, Timestamp: ts, HasTimestamp: true}
}

// ResolveTimestamp returns the timestamp the emit should be written with.
func (e Emit) ResolveTimestamp(inputTs int64) int64 {
	if e.HasTimestamp {
		return e.Timestamp
	}
	return inputTs
}

// Result is a serialized output ready for the sink.
type Result struct {
	Topic     string
	Data      []byte
	Timestamp int64
}

// ResultBatch holds the results of one batch, in entry order.
type ResultBatch []Result

// TimeRange is an inclusive [Start, End] window in nanoseconds.
type TimeRange struct {
	Start int64
	End   int64
}

// Unbounded returns a TimeRange that contains every timestamp.
func Unbounded() TimeRange {
	return TimeRange{Start: math.MinInt64, End: math.MaxInt64}
}

// Before reports whether ts precedes the window.
func (r TimeRange) Before(ts int64) bool { return ts < r.Start }

// After reports whether ts is past the window.
func (r TimeRange) After(ts int64) bool { return ts > r.End }

// Contains reports whether ts lies in the window.
func (r TimeRange) Contains(ts int64) bool { return !r.Before(ts) && !r.After(ts) }

// IsValid returns false if the window can not contain any timestamp.
func (r TimeRange) IsValid() bool { return r.Start <= r.End }
