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
	"sort"
	"time"

	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/schema"
	"github.com/lwviz/lwviz/viz/transform"
)

// ParamSplitBody makes SceneUpdate publish the upper and lower body as two
// topics instead of one full body.
const ParamSplitBody = "split_body"

type bone [2]int

var (
	lowerBodyBones = []bone{
		{0, 1}, {1, 4}, {4, 7}, {7, 10}, // left leg
		{0, 2}, {2, 5}, {5, 8}, {8, 11}, // right leg
	}
	upperBodyBones = []bone{
		{0, 3}, {3, 6}, {6, 9}, {9, 12}, {12, 15}, // spine
		{9, 13}, {13, 16}, {16, 18}, {18, 20}, // left arm
		{9, 14}, {14, 17}, {17, 19}, {19, 21}, // right arm
		{15, 22}, {15, 23}, // head to cameras
	}
	bodyBones = append(append([]bone{}, lowerBodyBones...), upperBodyBones...)
	handBones = []bone{
		{0, 1}, {1, 2}, {2, 3}, {3, 4}, // thumb
		{0, 5}, {5, 6}, {6, 7}, {7, 8}, // index
		{0, 9}, {9, 10}, {10, 11}, {11, 12}, // middle
		{0, 13}, {13, 14}, {14, 15}, {15, 16}, // ring
		{0, 17}, {17, 18}, {18, 19}, {19, 20}, // pinky
	}

	lowerBodyJoints = []int{0, 1, 2, 4, 5, 7, 8, 10, 11}
	upperBodyJoints = []int{0, 3, 6, 9, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23}
)

const skeletonLifetime = 100 * time.Millisecond

// SceneUpdate draws the body and hand skeletons of every pose frame.
type SceneUpdate struct {
	base
	splitBody bool

	bodyTopic      string
	upperBodyTopic string
	lowerBodyTopic string
	rightHandTopic string
	leftHandTopic  string

	// flat variants of the hands, drawn with thinner primitives
	rightHand2DTopic string
	leftHand2DTopic  string
}

// NewSceneUpdate creates a SceneUpdate visualizer.
func NewSceneUpdate(topic string, params transform.Params) (transform.Transform, error) {
	splitBody, err := params.Bool(ParamSplitBody, false)
	if err != nil {
		return nil, err
	}
	prefix := topicPrefix(topic)
	s := &SceneUpdate{
		splitBody: splitBody,

		// the misspelled hand topics are what existing layouts subscribe to
		bodyTopic:        prefix + "/body_keypoints",
		upperBodyTopic:   prefix + "/upper_body_keypoints",
		lowerBodyTopic:   prefix + "/lower_body_keypoints",
		rightHandTopic:   prefix + "/right_hand_keyponts",
		leftHandTopic:    prefix + "/left_hand_keyponts",
		rightHand2DTopic: prefix + "/right_hand_keyponts_2d",
		leftHand2DTopic:  prefix + "/left_hand_keyponts_2d",
	}
	outputs := map[string]string{
		s.rightHandTopic: schema.SceneUpdate,
		s.leftHandTopic:  schema.SceneUpdate,
	}
	if splitBody {
		outputs[s.upperBodyTopic] = schema.SceneUpdate
		outputs[s.lowerBodyTopic] = schema.SceneUpdate
	} else {
		outputs[s.bodyTopic] = schema.SceneUpdate
		outputs[s.rightHand2DTopic] = schema.SceneUpdate
		outputs[s.leftHand2DTopic] = schema.SceneUpdate
	}
	s.base = base{topic: topic, outputs: outputs}
	return s, nil
}

// Transform implements transform.Transform.
func (s *SceneUpdate) Transform(payload any, ts int64, _ ...any) ([]model.Emit, error) {
	frame, err := decodePayload[model.SkeletonFrame](s.topic, payload)
	if err != nil || frame == nil {
		return nil, err
	}
	ts = stamp(frame.Timestamp, ts)

	body := make([]model.Point3, 0, len(frame.Body)+4)
	body = append(body, frame.Body...)
	body = append(body, frame.HeadCam, frame.RightEyeCam, frame.HeadCam, frame.RightEyeCam)

	var emits []model.Emit
	emit := func(topic, id string, draw func(entity *schema.Message)) error {
		msg, err := schema.New(schema.SceneUpdate)
		if err != nil {
			return err
		}
		draw(newEntity(msg, id, ts, int64(skeletonLifetime)))
		emits = append(emits, model.NewEmit(topic, msg))
		return nil
	}

	if s.splitBody {
		if err := emit(s.lowerBodyTopic, "lower_body_skeleton", func(e *schema.Message) {
			addSpheres(e, pick(body, lowerBodyJoints), 0.008, colorJoint)
			addBones(e, body, lowerBodyBones, 0.0035, colorBody)
		}); err != nil {
			return nil, err
		}
		if err := emit(s.upperBodyTopic, "upper_body_skeleton", func(e *schema.Message) {
			addSpheres(e, pick(body, upperBodyJoints), 0.022, colorJoint)
			addBones(e, body, upperBodyBones, 0.01, colorBody)
		}); err != nil {
			return nil, err
		}
	} else {
		if err := emit(s.bodyTopic, "full_body_skeleton", func(e *schema.Message) {
			addSpheres(e, pick(body, boneJoints(bodyBones)), 0.022, colorJoint)
			addBones(e, body, bodyBones, 0.01, colorBody)
		}); err != nil {
			return nil, err
		}
	}

	hands := []struct {
		points         []model.Point3
		id             string
		topic, topic2D string
		color          color
	}{
		{frame.RightHand, "right_hand_skeleton", s.rightHandTopic, s.rightHand2DTopic, colorRightHand},
		{frame.LeftHand, "left_hand_skeleton", s.leftHandTopic, s.leftHand2DTopic, colorLeftHand},
	}
	for _, hand := range hands {
		if len(hand.points) == 0 {
			continue
		}
		if err := emit(hand.topic, hand.id, func(e *schema.Message) {
			addSpheres(e, hand.points, 0.015, colorJoint)
			addBones(e, hand.points, handBones, 0.005, hand.color)
		}); err != nil {
			return nil, err
		}
		if s.splitBody {
			continue
		}
		if err := emit(hand.topic2D, hand.id, func(e *schema.Message) {
			addSpheres(e, hand.points, 0.008, colorHandPoints)
			addBones(e, hand.points, handBones, 0.0035, hand.color)
		}); err != nil {
			return nil, err
		}
	}
	return emits, nil
}

// boneJoints returns the sorted joint indices used by bones.
func boneJoints(bones []bone) []int {
	seen := make(map[int]struct{})
	for _, b := range bones {
		seen[b[0]] = struct{}{}
		seen[b[1]] = struct{}{}
	}
	joints := make([]int, 0, len(seen))
	for j := range seen {
		joints = append(joints, j)
	}
	sort.Ints(joints)
	return joints
}

// pick returns the points at indices, skipping those out of range.
func pick(points []model.Point3, indices []int) []model.Point3 {
	picked := make([]model.Point3, 0, len(indices))
	for _, i := range indices {
		if i < len(points) {
			picked = append(picked, points[i])
		}
	}
	return picked
}

func newEntity(update *schema.Message, id string, ts, lifetime int64) *schema.Message {
	entity := update.Append("entities")
	entity.Set("id", id).
		Set("frame_id", worldFrame).
		SetTime("timestamp", ts).
		SetDuration("lifetime", lifetime).
		Set("frame_locked", true)
	return entity
}

func addSphere(entity *schema.Message, p model.Point3, size float64, c color) {
	sphere := entity.Append("spheres")
	pose := sphere.Sub("pose")
	pose.SetXYZ("position", p.X, p.Y, p.Z)
	pose.Sub("orientation").Set("w", 1.0)
	sphere.SetXYZ("size", size, size, size)
	sphere.SetRGBA("color", c.r, c.g, c.b, c.a)
}

func addSpheres(entity *schema.Message, points []model.Point3, size float64, c color) {
	for _, p := range points {
		addSphere(entity, p, size, c)
	}
}

// addBones draws every bone as a two point line strip. Bones referring to
// missing joints are skipped.
func addBones(entity *schema.Message, points []model.Point3, bones []bone, thickness float64, c color) {
	for _, b := range bones {
		if b[0] >= len(points) || b[1] >= len(points) {
			continue
		}
		line := entity.Append("lines")
		line.Set("type", "LINE_STRIP").Set("thickness", thickness)
		line.SetRGBA("color", c.r, c.g, c.b, c.a)
		for _, p := range []model.Point3{points[b[0]], points[b[1]]} {
			line.Append("points").Set("x", p.X).Set("y", p.Y).Set("z", p.Z)
		}
	}
}
