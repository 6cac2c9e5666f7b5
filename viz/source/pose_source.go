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

	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/transform"
)

// Logical topics produced by the standard sources.
const (
	TopicTFTree            = "tf-tree"
	TopicSceneUpdate       = "scene-update"
	TopicHeadTrajectory    = "scene-update/head_pose_trajectory"
	TopicSubtaskAnnotation = "subtask-annotation"
	TopicLowQuality        = "low-quality-annotation"
)

// DefaultTrajectoryPoints is the head trajectory window, 1.5s at 30 fps.
const DefaultTrajectoryPoints = 45

// poseSource emits one record per pose frame, converting frames lazily.
type poseSource struct {
	topic   string
	frames  *PoseFrames
	params  transform.Params
	convert func(*PoseFrame) any
	reset   func()

	ready  bool
	loaded []*PoseFrame
	pos    int
}

func (s *poseSource) Setup(ctx context.Context) error {
	frames, err := s.frames.Load(ctx)
	if err != nil {
		return cerror.WrapError(cerror.ErrSourceSetup, err, s.topic)
	}
	if s.reset != nil {
		s.reset()
	}
	s.loaded = frames
	s.pos = 0
	s.ready = true
	return nil
}

func (s *poseSource) Topics() []string { return []string{s.topic} }

func (s *poseSource) Params() transform.Params { return s.params }

func (s *poseSource) Next(ctx context.Context) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, err
	}
	if !s.ready {
		return model.Record{}, cerror.ErrSourceNotSetup.GenWithStackByArgs(s.topic)
	}
	if s.pos >= len(s.loaded) {
		return model.Record{}, io.EOF
	}
	f := s.loaded[s.pos]
	s.pos++
	return model.Record{Topic: s.topic, Payload: s.convert(f), Timestamp: f.Timestamp}, nil
}

func (s *poseSource) Close() error { return nil }

// NewPoseTFSource creates a source of the transform tree of every pose
// frame.
func NewPoseTFSource(frames *PoseFrames) Source {
	return &poseSource{
		topic:  TopicTFTree,
		frames: frames,
		convert: func(f *PoseFrame) any {
			tf := tfFrame(f)
			return &tf
		},
	}
}

// NewPoseSceneSource creates a source of the skeleton of every pose frame.
func NewPoseSceneSource(frames *PoseFrames, params transform.Params) Source {
	return &poseSource{
		topic:  TopicSceneUpdate,
		frames: frames,
		params: params,
		convert: func(f *PoseFrame) any {
			sf := skeletonFrame(f)
			return &sf
		},
	}
}

// NewHeadTrajectorySource creates a source of the head path over the last
// points frames.
func NewHeadTrajectorySource(frames *PoseFrames, points int) Source {
	if points <= 0 {
		points = DefaultTrajectoryPoints
	}
	// the window lives here, on the producer side, so the transform can
	// stay stateless
	window := make([]model.Point3, 0, points+1)
	return &poseSource{
		topic:  TopicHeadTrajectory,
		frames: frames,
		reset:  func() { window = window[:0] },
		convert: func(f *PoseFrame) any {
			head, _ := f.head()
			current := head.Position
			window = append(window, current)
			if len(window) > points {
				window = append(window[:0], window[1:]...)
			}
			return &model.HeadTrajectory{
				Timestamp: f.Timestamp,
				Points:    append([]model.Point3(nil), window...),
				Current:   &current,
			}
		},
	}
}
