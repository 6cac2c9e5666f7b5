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

package visualizer

import (
	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/schema"
	"github.com/lwviz/lwviz/viz/transform"
)

var (
	colorTrajectory  = color{0.2, 0.8, 0.2, 1}
	colorCurrentHead = color{1, 0.85, 0, 1}
)

// HeadPoseTrajectory draws the recent head path as a line strip, plus a
// sphere at the current head position.
type HeadPoseTrajectory struct {
	base
	outputTopic string
}

// NewHeadPoseTrajectory creates a HeadPoseTrajectory visualizer.
func NewHeadPoseTrajectory(topic string, _ transform.Params) (transform.Transform, error) {
	output := topicPrefix(topic) + "/head_pose_trajectory"
	return &HeadPoseTrajectory{
		base: base{
			topic:   topic,
			outputs: map[string]string{output: schema.SceneUpdate},
		},
		outputTopic: output,
	}, nil
}

// Transform implements transform.Transform.
func (h *HeadPoseTrajectory) Transform(payload any, ts int64, _ ...any) ([]model.Emit, error) {
	traj, err := decodePayload[model.HeadTrajectory](h.topic, payload)
	if err != nil || traj == nil || traj.Current == nil {
		return nil, err
	}
	ts = stamp(traj.Timestamp, ts)

	msg, err := schema.New(schema.SceneUpdate)
	if err != nil {
		return nil, err
	}
	// zero lifetime keeps the entity until it is replaced
	entity := newEntity(msg, "head_pose_trajectory", ts, 0)
	if len(traj.Points) >= 2 {
		line := entity.Append("lines")
		line.Set("type", "LINE_STRIP").
			Set("thickness", 9).
			Set("scale_invariant", true)
		line.SetRGBA("color", colorTrajectory.r, colorTrajectory.g, colorTrajectory.b, colorTrajectory.a)
		for _, p := range traj.Points {
			line.Append("points").Set("x", p.X).Set("y", p.Y).Set("z", p.Z)
		}
	}
	addSphere(entity, *traj.Current, 0.04, colorCurrentHead)
	return []model.Emit{model.NewEmit(h.outputTopic, msg)}, nil
}
