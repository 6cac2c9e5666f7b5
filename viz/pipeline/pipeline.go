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
	"fmt"
	"io"
	"runtime"
	"time"

	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/schema"
	"github.com/lwviz/lwviz/viz/sink"
	"github.com/lwviz/lwviz/viz/source"
	"github.com/lwviz/lwviz/viz/transform"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkSize is the default number of entries of a batch.
	DefaultChunkSize = 20
	// DefaultQueueSize is the default capacity of the queues between the
	// stages.
	DefaultQueueSize = 20
)

// Config is the configuration of a Pipeline.
type Config struct {
	// Concurrency is the number of workers, 0 means GOMAXPROCS.
	Concurrency int
	ChunkSize   int
	QueueSize   int
	// Window limits the merged records, nil means unbounded.
	Window *model.TimeRange
}

func (c Config) adjust() (Config, error) {
	if c.Concurrency < 0 || c.ChunkSize < 0 || c.QueueSize < 0 {
		return c, cerror.ErrInvalidConfig.GenWithStackByArgs(
			fmt.Sprintf("negative pipeline size: concurrency=%d chunk-size=%d queue-size=%d",
				c.Concurrency, c.ChunkSize, c.QueueSize))
	}
	if c.Concurrency == 0 {
		c.Concurrency = runtime.GOMAXPROCS(0)
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Window == nil {
		w := model.Unbounded()
		c.Window = &w
	}
	if !c.Window.IsValid() {
		return c, cerror.ErrInvalidConfig.GenWithStackByArgs(
			fmt.Sprintf("start %d is after end %d", c.Window.Start, c.Window.End))
	}
	return c, nil
}

// Stats are the counters of a run.
type Stats struct {
	Records         int64
	Batches         int64
	Results         int64
	TransformErrors int64
}

type stats struct {
	records         atomic.Int64
	batches         atomic.Int64
	results         atomic.Int64
	transformErrors atomic.Int64
}

// Pipeline merges the records of its sources, runs the matching transforms
// on a pool of workers and writes the results to the sink in merge order.
type Pipeline struct {
	cfg      Config
	registry *transform.Registry
	sources  []source.Source
	sink     sink.Sink

	stats stats
	used  atomic.Bool
}

// New creates a Pipeline. The order of sources breaks timestamp ties.
func New(cfg Config, registry *transform.Registry, out sink.Sink, sources ...source.Source) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		registry: registry,
		sources:  sources,
		sink:     out,
	}
}

// Stats returns the counters of the run.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Records:         p.stats.records.Load(),
		Batches:         p.stats.batches.Load(),
		Results:         p.stats.results.Load(),
		TransformErrors: p.stats.transformErrors.Load(),
	}
}

// plan is the setup of a run.
type plan struct {
	params     map[string]transform.Params
	table      map[string]schema.Schema
	listened   map[string]struct{}
	advertised map[string]struct{}
}

// Run runs the pipeline to completion. A Pipeline can only run once.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	if !p.used.CompareAndSwap(false, true) {
		return cerror.ErrPipelineClosed.GenWithStackByArgs()
	}
	cfg, err := p.cfg.adjust()
	if err != nil {
		return err
	}
	if len(p.sources) == 0 {
		return cerror.ErrPipelineNoSource.GenWithStackByArgs()
	}
	p.cfg = cfg

	defer func() {
		err = multierr.Append(err, p.closeSources())
	}()
	for _, s := range p.sources {
		if err := s.Setup(ctx); err != nil {
			return errors.Trace(err)
		}
	}
	pl, err := p.prepare()
	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, p.sink.Close())
	}()
	p.sink.SetSchemaTable(pl.table)
	if err := p.sink.Open(ctx); err != nil {
		return errors.Trace(err)
	}

	log.Info("pipeline started",
		zap.Int("sources", len(p.sources)),
		zap.Int("outputs", len(pl.table)),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Int("chunkSize", cfg.ChunkSize),
		zap.Int("queueSize", cfg.QueueSize),
		zap.Int64("start", cfg.Window.Start),
		zap.Int64("end", cfg.Window.End))
	start := time.Now()

	tasks := make(chan task, cfg.QueueSize)
	futures := make(chan chan model.ResultBatch, cfg.QueueSize)
	results := make(chan model.ResultBatch, cfg.QueueSize)

	eg, egCtx := errgroup.WithContext(ctx)
	var produceErr error
	eg.Go(func() error {
		if err := p.produce(egCtx, pl, tasks, futures); err != nil {
			if egCtx.Err() != nil {
				return err
			}
			// the queues are closed, let the submitted batches drain
			produceErr = err
		}
		return nil
	})
	for i := 0; i < cfg.Concurrency; i++ {
		eg.Go(func() error {
			return p.work(egCtx, tasks)
		})
	}
	eg.Go(func() error {
		return collect(egCtx, futures, results)
	})
	eg.Go(func() error {
		return p.write(egCtx, results)
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	if produceErr != nil {
		return produceErr
	}

	st := p.Stats()
	log.Info("pipeline finished",
		zap.Int64("records", st.Records),
		zap.Int64("batches", st.Batches),
		zap.Int64("results", st.Results),
		zap.Int64("transformErrors", st.TransformErrors),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// prepare resolves the transforms of every advertised topic and checks
// their outputs and correlated topics.
func (p *Pipeline) prepare() (*plan, error) {
	pl := &plan{
		params: make(map[string]transform.Params),
		table:  make(map[string]schema.Schema),
	}
	topics := []string{model.InitializeTopic}
	advertised := map[string]struct{}{model.InitializeTopic: {}}
	for _, s := range p.sources {
		for _, topic := range s.Topics() {
			if _, ok := advertised[topic]; ok {
				continue
			}
			advertised[topic] = struct{}{}
			topics = append(topics, topic)
			pl.params[topic] = s.Params()
		}
	}

	for _, topic := range topics {
		instances, err := p.registry.Resolve(topic, pl.params[topic])
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, inst := range instances {
			for _, listened := range inst.ListenTo() {
				if _, ok := advertised[listened]; !ok {
					return nil, cerror.ErrCorrelatedTopicMissing.GenWithStackByArgs(topic, listened)
				}
			}
			for output, ident := range inst.Outputs() {
				sch, err := schema.Lookup(ident)
				if err != nil {
					return nil, errors.Annotatef(err, "output %s of transform %s", output, inst.Pattern)
				}
				if prev, ok := pl.table[output]; ok && prev.Name != sch.Name {
					return nil, cerror.ErrInvalidConfig.GenWithStackByArgs(fmt.Sprintf(
						"output topic %s has two schemas, %s and %s", output, prev.Name, sch.Name))
				}
				pl.table[output] = sch
			}
		}
	}
	pl.listened = p.registry.ListenedTopics()
	pl.advertised = advertised
	return pl, nil
}

// produce merges the sources and submits the batches. It closes tasks and
// futures when it returns.
func (p *Pipeline) produce(
	ctx context.Context,
	pl *plan,
	tasks chan<- task,
	futures chan<- chan model.ResultBatch,
) error {
	defer close(tasks)
	defer close(futures)

	var seq uint64
	submit := func(entries []entry) error {
		seq++
		future := make(chan model.ResultBatch, 1)
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case tasks <- task{batch: &batch{seq: seq, entries: entries}, future: future}:
		}
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case futures <- future:
		}
		submittedBatchCounter.Inc()
		inflightBatchGauge.Inc()
		p.stats.batches.Inc()
		return nil
	}

	m := newMerger(p.sources, *p.cfg.Window)
	corr := newCorrelator(pl.listened)
	ch := newChunker[entry](p.cfg.ChunkSize)
	unplanned := make(map[string]struct{})
	for {
		r, err := m.next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		mergedRecordCounter.Inc()
		p.stats.records.Inc()

		// outputs of topics missing from Topics() have no schema in the sink
		if _, ok := pl.advertised[r.Topic]; !ok {
			if _, seen := unplanned[r.Topic]; !seen {
				unplanned[r.Topic] = struct{}{}
				log.Warn("skip records of a topic not advertised by any source",
					zap.String("topic", r.Topic), zap.Int64("ts", r.Timestamp))
			}
			continue
		}
		corr.observe(r)
		instances, err := p.registry.Resolve(r.Topic, pl.params[r.Topic])
		if err != nil {
			return errors.Trace(err)
		}
		for i, inst := range instances {
			full := ch.add(entry{
				topic:      r.Topic,
				index:      i,
				transform:  inst,
				payload:    r.Payload,
				correlated: corr.snapshot(inst.ListenTo()),
				ts:         r.Timestamp,
			})
			if full == nil {
				continue
			}
			if err := submit(full); err != nil {
				return err
			}
		}
	}
	if rest := ch.flush(); rest != nil {
		return submit(rest)
	}
	return nil
}

// write hands every result to the sink, in order.
func (p *Pipeline) write(ctx context.Context, results <-chan model.ResultBatch) error {
	for {
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case rb, ok := <-results:
			if !ok {
				return nil
			}
			for _, r := range rb {
				if err := p.sink.Write(r); err != nil {
					return errors.Trace(err)
				}
			}
			writtenResultCounter.Add(float64(len(rb)))
			inflightBatchGauge.Dec()
			p.stats.results.Add(int64(len(rb)))
		}
	}
}

func (p *Pipeline) closeSources() error {
	var err error
	for i, s := range p.sources {
		if cerr := s.Close(); cerr != nil {
			log.Warn("close source failed", zap.String("source", sourceName(i, s)), zap.Error(cerr))
			err = multierr.Append(err, errors.Trace(cerr))
		}
	}
	return err
}
