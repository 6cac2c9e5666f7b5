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

package convert

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lwviz/lwviz/pkg/config"
	"github.com/lwviz/lwviz/pkg/logutil"
	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/pipeline"
	"github.com/lwviz/lwviz/viz/sink"
	"github.com/lwviz/lwviz/viz/source"
	"github.com/lwviz/lwviz/viz/transform"
	"github.com/lwviz/lwviz/viz/visualizer"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// StdPipeline is a pipeline over the standard sources of one input file,
// writing to an MCAP file.
type StdPipeline struct {
	*pipeline.Pipeline
	Output string
	RunID  string
}

// NewStdPipeline builds the pipeline converting cfg.Input. cfg must have
// been validated.
func NewStdPipeline(ctx context.Context, cfg *config.ConvertConfig) (*StdPipeline, error) {
	compression, err := sink.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	meta, err := source.ReadSessionMetadata(ctx, cfg.Input)
	if err != nil {
		return nil, errors.Annotate(err, "read session metadata")
	}

	reg := transform.NewRegistry()
	visualizer.Register(reg)

	sources := StdSources(cfg.Input, reg, cfg.SplitBody, cfg.TrajectoryPoints)

	output := cfg.Output
	if output == "" {
		output = sink.DefaultOutputPath(cfg.Input)
	}
	out := sink.NewMCAPSink(output, sink.MCAPOptions{
		Compression: compression,
		ChunkSize:   cfg.ChunkSizeBytes(),
		Metadata:    meta,
	})

	start, end := cfg.Window()
	p := pipeline.New(pipeline.Config{
		Concurrency: cfg.Concurrency,
		ChunkSize:   cfg.ChunkSize,
		QueueSize:   cfg.QueueSize,
		Window:      &model.TimeRange{Start: start, End: end},
	}, reg, out, sources...)
	return &StdPipeline{Pipeline: p, Output: output, RunID: out.RunID()}, nil
}

// StdSources returns the standard sources of path in merge order. Channels
// that no standard source reads but reg has a transform for are passed
// through.
func StdSources(path string, reg *transform.Registry, splitBody bool, trajectoryPoints int) []source.Source {
	frames := source.NewPoseFrames(path)
	sceneParams := transform.Params{}
	if splitBody {
		sceneParams[visualizer.ParamSplitBody] = "true"
	}
	return []source.Source{
		source.NewAnnotationSource(path),
		source.NewLowQualitySource(path),
		source.NewPoseTFSource(frames),
		source.NewPoseSceneSource(frames, sceneParams),
		source.NewHeadTrajectorySource(frames, trajectoryPoints),
		source.NewPassthroughSource(path, func(topic string) bool {
			return !source.IsStandardInput(topic) && reg.Matches(topic)
		}),
	}
}

// Run converts cfg.Input and logs a summary.
func Run(ctx context.Context, cfg *config.ConvertConfig) error {
	lg := logutil.WithComponent(ctx, "convert")
	p, err := NewStdPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	lg.Info("convert started",
		zap.String("input", cfg.Input), zap.String("output", p.Output),
		zap.String("runID", p.RunID), zap.String("compression", cfg.Compression))

	start := time.Now()
	if err := p.Run(ctx); err != nil {
		lg.Warn("convert stopped", zap.String("output", p.Output),
			zap.Duration("duration", time.Since(start)),
			logutil.ZapErrorFilter(err, context.Canceled))
		return errors.Trace(err)
	}
	stats := p.Stats()
	lg.Info("convert finished",
		zap.String("output", p.Output),
		zap.String("records", humanize.Comma(stats.Records)),
		zap.String("results", humanize.Comma(stats.Results)),
		zap.Int64("transformErrors", stats.TransformErrors),
		zap.Duration("duration", time.Since(start)))
	return nil
}
