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
	"strings"

	"github.com/goccy/go-json"
	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/viz/transform"
)

const worldFrame = "world"

// Register adds every visualizer to reg. The registration order is the
// execution order of transforms matching the same topic.
func Register(reg *transform.Registry) {
	for _, r := range []struct {
		pattern string
		factory transform.Factory
	}{
		{"subtask-annotation", NewAnnotation},
		{"*/subtask_annotation", NewAnnotation},
		{"tf-tree", NewFrameTF},
		{"*/tf_tree", NewFrameTF},
		{"low-quality-annotation", NewLowQuality},
		{"*/low_quality_annotation", NewLowQuality},
		{"scene-update", NewSceneUpdate},
		{"*/scene_update", NewSceneUpdate},
		{"/head-pose-trajectory", NewHeadPoseTrajectory},
		{"*/head_pose_trajectory", NewHeadPoseTrajectory},
		{"/Audio", NewAudio},
		{"*/audio", NewAudio},
		{"pointcloud/static", NewPointCloudStatic},
	} {
		reg.MustRegister(r.pattern, r.factory)
	}
}

// topicPrefix returns "/<first segment>" for relative topics such as
// "robot/scene_update", and "" for absolute ones.
func topicPrefix(topic string) string {
	if topic == "" || strings.HasPrefix(topic, "/") {
		return ""
	}
	stem, _, _ := strings.Cut(topic, "/")
	return "/" + stem
}

// base holds what every visualizer shares. Visualizers never change after
// construction, so one instance serves all workers.
type base struct {
	topic   string
	outputs map[string]string
}

func (b *base) Outputs() map[string]string {
	outputs := make(map[string]string, len(b.outputs))
	for k, v := range b.outputs {
		outputs[k] = v
	}
	return outputs
}

func (b *base) ListenTo() []string {
	return nil
}

// decodePayload converts a payload to T. Generic payloads, such as the
// maps produced by the passthrough source, go through JSON.
// A nil payload yields nil.
func decodePayload[T any](topic string, payload any) (*T, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case *T:
		return p, nil
	case T:
		return &p, nil
	case map[string]any:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, cerror.WrapError(cerror.ErrPayloadType, err, payload, topic)
		}
		v := new(T)
		if err := json.Unmarshal(data, v); err != nil {
			return nil, cerror.WrapError(cerror.ErrPayloadType, err, payload, topic)
		}
		return v, nil
	}
	return nil, cerror.ErrPayloadType.GenWithStackByArgs(payload, topic)
}

// stamp prefers the timestamp carried by the payload.
func stamp(payloadTs, ts int64) int64 {
	if payloadTs != 0 {
		return payloadTs
	}
	return ts
}

type color struct {
	r, g, b, a float64
}

var (
	colorBody       = color{1, 0.2, 0.2, 1}
	colorLeftHand   = color{0.2, 0.2, 1, 1}
	colorRightHand  = color{1, 0.4, 0.7, 1}
	colorJoint      = color{0.6, 0.4, 0.2, 1}
	colorHandPoints = color{1, 1, 0, 1}
)
