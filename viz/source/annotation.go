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
	"sort"

	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/transform"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Annotation topics of the standard input.
const (
	TopicAnnotationSegments   = "/annotation/segments"
	TopicAnnotationLowQuality = "/annotation/low_quality"
)

type segmentMsg struct {
	Segment *struct {
		Description string     `json:"description"`
		Skill       string     `json:"skill"`
		StartFrame  int64Value `json:"start_frame"`
		EndFrame    int64Value `json:"end_frame"`
	} `json:"segment"`
}

type segment struct {
	description string
	skill       string
	start, end  int
}

// AnnotationSource expands the annotated subtask segments to one record per
// body pose frame.
type AnnotationSource struct {
	recordBuffer
	path string
}

// NewAnnotationSource creates an AnnotationSource reading path.
func NewAnnotationSource(path string) *AnnotationSource {
	return &AnnotationSource{path: path}
}

// Setup implements Source.
func (s *AnnotationSource) Setup(ctx context.Context) error {
	records, err := s.read(ctx)
	if err != nil {
		return cerror.WrapError(cerror.ErrSourceSetup, err, TopicSubtaskAnnotation)
	}
	s.reset(records)
	return nil
}

func (s *AnnotationSource) read(ctx context.Context) ([]model.Record, error) {
	var segments []segment
	dec := newDecoder()
	err := scanTopics(ctx, s.path, []string{TopicAnnotationSegments}, func(m message) error {
		var msg segmentMsg
		if err := dec.decode(m, &msg); err != nil {
			return err
		}
		if msg.Segment == nil {
			return nil
		}
		segments = append(segments, segment{
			description: msg.Segment.Description,
			skill:       msg.Segment.Skill,
			start:       int(msg.Segment.StartFrame),
			end:         int(msg.Segment.EndFrame),
		})
		return nil
	})
	if err != nil || len(segments) == 0 {
		return nil, err
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].start < segments[j].start })

	frames, err := logTimes(ctx, s.path, TopicPoseBody)
	if err != nil {
		return nil, err
	}
	records := make([]model.Record, 0, len(frames))
	stage := 0
	for i, ts := range frames {
		var current *segment
		for stage < len(segments) {
			seg := &segments[stage]
			if i < seg.start {
				break
			}
			if i <= seg.end {
				current = seg
				break
			}
			stage++
		}
		frame := &model.SubtaskFrame{
			FrameNumber: i,
			Timestamp:   ts,
			EndFrame:    len(frames) - 1,
		}
		if current != nil {
			frame.HasAnnotation = true
			frame.Description = current.description
			frame.Skill = current.skill
			frame.StartFrame = current.start
			frame.EndFrame = current.end
		}
		records = append(records, model.Record{Topic: TopicSubtaskAnnotation, Payload: frame, Timestamp: ts})
	}
	log.Info("subtask annotations loaded",
		zap.Int("segments", len(segments)), zap.Int("frames", len(frames)))
	return records, nil
}

// Topics implements Source.
func (s *AnnotationSource) Topics() []string { return []string{TopicSubtaskAnnotation} }

// Params implements Source.
func (s *AnnotationSource) Params() transform.Params { return nil }

// Next implements Source.
func (s *AnnotationSource) Next(ctx context.Context) (model.Record, error) { return s.next(ctx) }

// Close implements Source.
func (s *AnnotationSource) Close() error { return nil }

type lowQualityMsg struct {
	ProblemTypes []struct {
		Name     string       `json:"name"`
		FrameIDs []int64Value `json:"frame_ids"`
	} `json:"problem_types"`
}

// LowQualitySource maps the low quality problems of the session to the body
// pose frames, and emits one record per frame so that frames without
// problems clear the previous ones.
type LowQualitySource struct {
	recordBuffer
	path string
}

// NewLowQualitySource creates a LowQualitySource reading path.
func NewLowQualitySource(path string) *LowQualitySource {
	return &LowQualitySource{path: path}
}

// Setup implements Source.
func (s *LowQualitySource) Setup(ctx context.Context) error {
	records, err := s.read(ctx)
	if err != nil {
		return cerror.WrapError(cerror.ErrSourceSetup, err, TopicLowQuality)
	}
	s.reset(records)
	return nil
}

func (s *LowQualitySource) read(ctx context.Context) ([]model.Record, error) {
	frames, err := logTimes(ctx, s.path, TopicPoseBody)
	if err != nil || len(frames) == 0 {
		return nil, err
	}
	problems := make(map[int][]string)
	dec := newDecoder()
	err = scanTopics(ctx, s.path, []string{TopicAnnotationLowQuality}, func(m message) error {
		var msg lowQualityMsg
		if err := dec.decode(m, &msg); err != nil {
			return err
		}
		for _, pt := range msg.ProblemTypes {
			name := pt.Name
			if name == "" {
				name = "unknown"
			}
			for _, id := range pt.FrameIDs {
				idx := int(id)
				if idx < 0 || idx >= len(frames) {
					continue
				}
				problems[idx] = append(problems[idx], name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	records := make([]model.Record, 0, len(frames))
	for i, ts := range frames {
		records = append(records, model.Record{
			Topic: TopicLowQuality,
			Payload: &model.LowQualityFrame{
				FrameNumber:  i,
				Timestamp:    ts,
				ProblemTypes: problems[i],
			},
			Timestamp: ts,
		})
	}
	log.Info("low quality annotations loaded",
		zap.Int("flaggedFrames", len(problems)), zap.Int("frames", len(frames)))
	return records, nil
}

// Topics implements Source.
func (s *LowQualitySource) Topics() []string { return []string{TopicLowQuality} }

// Params implements Source.
func (s *LowQualitySource) Params() transform.Params { return nil }

// Next implements Source.
func (s *LowQualitySource) Next(ctx context.Context) (model.Record, error) { return s.next(ctx) }

// Close implements Source.
func (s *LowQualitySource) Close() error { return nil }
