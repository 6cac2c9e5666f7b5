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
	"context"
	"time"

	"github.com/goccy/go-json"
	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/transform"
	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// entry is one record bound to one of the transforms of its topic.
type entry struct {
	topic string
	// index is the position of the transform among those of the topic.
	index      int
	transform  transform.Instance
	payload    any
	correlated []any
	ts         int64
}

// batch is the unit of work of the workers. seq starts at 1 and follows
// the submission order.
type batch struct {
	seq     uint64
	entries []entry
}

type task struct {
	batch  *batch
	future chan<- model.ResultBatch
}

type marshaler interface {
	Marshal() ([]byte, error)
}

// serialize encodes an emitted payload. Protobuf messages use the wire
// format, raw bytes are kept and anything else is encoded as JSON.
func serialize(topic string, payload any) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch v := payload.(type) {
	case marshaler:
		data, err = v.Marshal()
	case proto.Message:
		data, err = proto.MarshalOptions{Deterministic: true}.Marshal(v)
	case []byte:
		data = v
	default:
		data, err = json.Marshal(v)
	}
	if err != nil {
		return nil, cerror.WrapError(cerror.ErrPayloadEncode, err, topic)
	}
	return data, nil
}

// runEntry runs the transform of e. A failing entry yields no results.
func runEntry(e entry) (results []model.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = cerror.ErrTransformPanic.GenWithStackByArgs(e.topic, r)
		}
	}()
	emits, err := e.transform.Transform.Transform(e.payload, e.ts, e.correlated...)
	if err != nil {
		return nil, cerror.WrapError(cerror.ErrTransformFailed, err, e.topic, e.ts)
	}
	if len(emits) == 0 {
		return nil, nil
	}
	outputs := e.transform.Outputs()
	results = make([]model.Result, 0, len(emits))
	for _, emit := range emits {
		if _, ok := outputs[emit.Topic]; !ok {
			return nil, errors.Annotatef(
				cerror.ErrTransformFailed.GenWithStackByArgs(e.topic, e.ts),
				"emit to undeclared topic %s", emit.Topic)
		}
		data, err := serialize(emit.Topic, emit.Payload)
		if err != nil {
			return nil, err
		}
		results = append(results, model.Result{
			Topic:     emit.Topic,
			Data:      data,
			Timestamp: emit.ResolveTimestamp(e.ts),
		})
	}
	return results, nil
}

// execute runs every entry of b. Failed entries are logged and skipped.
func (p *Pipeline) execute(b *batch) model.ResultBatch {
	failpoint.Inject("PipelineDelayBatch", func(val failpoint.Value) {
		if seq, ok := val.(int); ok && uint64(seq) == b.seq {
			time.Sleep(100 * time.Millisecond)
		}
	})

	start := time.Now()
	var out model.ResultBatch
	for _, e := range b.entries {
		results, err := runEntry(e)
		if err != nil {
			transformErrorCounter.WithLabelValues(e.topic).Inc()
			p.stats.transformErrors.Inc()
			code, _ := cerror.RFCCode(err)
			fields := []zap.Field{
				zap.String("topic", e.topic),
				zap.String("pattern", e.transform.Pattern),
				zap.Int("transform", e.index),
				zap.Int64("ts", e.ts),
				zap.String("code", string(code)),
				zap.Error(err),
			}
			if cerror.IsFatal(err) {
				log.Error("transform failed unexpectedly, skip the record", fields...)
			} else {
				log.Warn("transform failed, skip the record", fields...)
			}
			continue
		}
		out = append(out, results...)
	}
	batchDuration.Observe(time.Since(start).Seconds())
	return out
}

// work executes batches until tasks is closed.
func (p *Pipeline) work(ctx context.Context, tasks <-chan task) error {
	for {
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case t, ok := <-tasks:
			if !ok {
				return nil
			}
			// the future is buffered, the worker never blocks on it
			t.future <- p.execute(t.batch)
		}
	}
}
