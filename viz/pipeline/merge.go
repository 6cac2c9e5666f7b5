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

import (
	"container/heap"
	"context"
	"fmt"
	"io"

	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/source"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

type mergeItem struct {
	record model.Record
	// src is the index of the source, it breaks timestamp ties.
	src int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	if h[i].record.Timestamp != h[j].record.Timestamp {
		return h[i].record.Timestamp < h[j].record.Timestamp
	}
	return h[i].src < h[j].src
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(mergeItem)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = mergeItem{}
	*h = old[:n-1]
	return item
}

// merger merges ordered sources into one stream ordered by timestamp, then
// by source index. The stream starts with an initialize record and stops at
// the first record past the window.
type merger struct {
	sources []source.Source
	window  model.TimeRange

	h        mergeHeap
	primed   bool
	started  bool
	finished bool
	// first is the first in-window record, held back behind the
	// initialize record.
	first *model.Record
}

func newMerger(sources []source.Source, window model.TimeRange) *merger {
	return &merger{sources: sources, window: window}
}

func sourceName(idx int, s source.Source) string {
	return fmt.Sprintf("%d:%T", idx, s)
}

// pull reads the next record of source idx into the heap. A source that
// fails is dropped.
func (m *merger) pull(ctx context.Context, idx int) error {
	s := m.sources[idx]
	r, err := s.Next(ctx)
	if err == nil {
		heap.Push(&m.h, mergeItem{record: r, src: idx})
		return nil
	}
	if err == io.EOF {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Trace(ctxErr)
	}
	name := sourceName(idx, s)
	sourceErrorCounter.WithLabelValues(name).Inc()
	log.Warn("source failed, drop it from the merge",
		zap.String("source", name), zap.Error(err))
	return nil
}

func (m *merger) pop(ctx context.Context) (model.Record, bool, error) {
	if !m.primed {
		m.primed = true
		heap.Init(&m.h)
		for i := range m.sources {
			if err := m.pull(ctx, i); err != nil {
				return model.Record{}, false, err
			}
		}
	}
	if m.h.Len() == 0 {
		return model.Record{}, false, nil
	}
	item := heap.Pop(&m.h).(mergeItem)
	if err := m.pull(ctx, item.src); err != nil {
		return model.Record{}, false, err
	}
	return item.record, true, nil
}

// advance returns the next in-window record, or io.EOF.
func (m *merger) advance(ctx context.Context) (model.Record, error) {
	if m.finished {
		return model.Record{}, io.EOF
	}
	for {
		r, ok, err := m.pop(ctx)
		if err != nil {
			return model.Record{}, err
		}
		if !ok {
			m.finished = true
			return model.Record{}, io.EOF
		}
		if m.window.Before(r.Timestamp) {
			continue
		}
		if m.window.After(r.Timestamp) {
			// the end of the window stops every source
			m.finished = true
			log.Info("merge reached the end of the window",
				zap.Int64("ts", r.Timestamp), zap.Int64("end", m.window.End))
			return model.Record{}, io.EOF
		}
		return r, nil
	}
}

// next returns the next merged record, or io.EOF at the end of the stream.
func (m *merger) next(ctx context.Context) (model.Record, error) {
	if !m.started {
		m.started = true
		sentinel := model.Record{Topic: model.InitializeTopic}
		r, err := m.advance(ctx)
		switch {
		case err == nil:
			sentinel.Timestamp = r.Timestamp
			m.first = &r
		case err != io.EOF:
			return model.Record{}, err
		}
		return sentinel, nil
	}
	if m.first != nil {
		r := *m.first
		m.first = nil
		return r, nil
	}
	return m.advance(ctx)
}
