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
	"gonum.org/v1/gonum/num/quat"
)

// FrameTF publishes the transform tree of every pose frame.
type FrameTF struct {
	base
	outputTopic string
}

// NewFrameTF creates a FrameTF visualizer.
func NewFrameTF(topic string, _ transform.Params) (transform.Transform, error) {
	output := topicPrefix(topic) + "/tf_tree"
	return &FrameTF{
		base: base{
			topic:   topic,
			outputs: map[string]string{output: schema.FrameTransforms},
		},
		outputTopic: output,
	}, nil
}

// Transform implements transform.Transform.
func (f *FrameTF) Transform(payload any, ts int64, _ ...any) ([]model.Emit, error) {
	frame, err := decodePayload[model.TFFrame](f.topic, payload)
	if err != nil || frame == nil {
		return nil, err
	}
	ts = stamp(frame.Timestamp, ts)

	msg, err := schema.New(schema.FrameTransforms)
	if err != nil {
		return nil, err
	}
	for _, tf := range frame.Transforms {
		rot := normalize(tf.Rotation)
		m := msg.Append("transforms")
		m.SetTime("timestamp", ts).
			Set("parent_frame_id", tf.ParentFrameID).
			Set("child_frame_id", tf.ChildFrameID).
			SetXYZ("translation", tf.Translation.X, tf.Translation.Y, tf.Translation.Z)
		m.Sub("rotation").Set("x", rot.X).Set("y", rot.Y).Set("z", rot.Z).Set("w", rot.W)
	}
	return []model.Emit{model.NewEmit(f.outputTopic, msg)}, nil
}

// normalize returns q scaled to unit length, or the identity for a zero q.
func normalize(q model.Quaternion) model.Quaternion {
	n := quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
	abs := quat.Abs(n)
	if abs == 0 {
		return model.IdentityQuaternion()
	}
	n = quat.Scale(1/abs, n)
	return model.Quaternion{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}
