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
	"context"
	"io"

	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/transform"
)

// Source produces the records of one logical input, in non-decreasing
// timestamp order.
type Source interface {
	// Setup prepares the source, for example by opening its file. It is
	// called once before the first Next.
	Setup(ctx context.Context) error
	// Topics returns the topics the source may produce. It is valid after
	// Setup. Records of any other topic are skipped by the pipeline.
	Topics() []string
	// Params returns the parameters handed to the transforms of the
	// source topics.
	Params() transform.Params
	// Next returns the next record, or io.EOF when the source is exhausted.
	Next(ctx context.Context) (model.Record, error)
	// Close releases the resources of the source.
	Close() error
}

// recordBuffer serves records that were fully read during Setup.
type recordBuffer struct {
	records []model.Record
	pos     int
}

func (b *recordBuffer) reset(records []model.Record) {
	b.records = records
	b.pos = 0
}

func (b *recordBuffer) next(ctx context.Context) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, err
	}
	if b.pos >= len(b.records) {
		return model.Record{}, io.EOF
	}
	r := b.records[b.pos]
	// release the payload, it belongs to the pipeline from now on
	b.records[b.pos] = model.Record{}
	b.pos++
	return r, nil
}

// SliceSource is a Source over in-memory records.
type SliceSource struct {
	recordBuffer
	initial []model.Record
	topics  []string
	params  transform.Params
}

// NewSliceSource creates a SliceSource. The records must be sorted by
// timestamp.
func NewSliceSource(records []model.Record, params transform.Params) *SliceSource {
	seen := make(map[string]struct{})
	var topics []string
	for _, r := range records {
		if _, ok := seen[r.Topic]; !ok {
			seen[r.Topic] = struct{}{}
			topics = append(topics, r.Topic)
		}
	}
	return &SliceSource{initial: records, topics: topics, params: params}
}

// Setup implements Source.
func (s *SliceSource) Setup(context.Context) error {
	records := make([]model.Record, len(s.initial))
	copy(records, s.initial)
	s.reset(records)
	return nil
}

// Topics implements Source.
func (s *SliceSource) Topics() []string { return s.topics }

// Params implements Source.
func (s *SliceSource) Params() transform.Params { return s.params }

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (model.Record, error) { return s.next(ctx) }

// Close implements Source.
func (s *SliceSource) Close() error { return nil }

// IsStandardInput reports whether topic is consumed by the standard
// sources, so it must not be passed through as well.
func IsStandardInput(topic string) bool {
	switch topic {
	case TopicAnnotationSegments, TopicAnnotationLowQuality, TopicSessionMetadata:
		return true
	}
	for _, t := range poseTopics {
		if t == topic {
			return true
		}
	}
	return false
}
