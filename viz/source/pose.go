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
	"sync"

	"github.com/lwviz/lwviz/viz/model"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Pose topics of the standard input.
const (
	TopicPoseBody        = "/pose/body"
	TopicPoseLeftHand    = "/pose/left_hand"
	TopicPoseRightHand   = "/pose/right_hand"
	TopicPoseHead        = "/pose/head_pose"
	TopicPoseHeadCam     = "/pose/headcam_pose"
	TopicPoseRightEyeCam = "/pose/right_eye_cam"
	TopicPosePelvis      = "/pose/pelvis"
)

var poseTopics = []string{
	TopicPoseBody,
	TopicPoseLeftHand,
	TopicPoseRightHand,
	TopicPoseHead,
	TopicPoseHeadCam,
	TopicPoseRightEyeCam,
	TopicPosePelvis,
}

// headJoint is the body joint standing in for a missing head pose.
const headJoint = 15

type tfMsg struct {
	X    float64           `json:"x"`
	Y    float64           `json:"y"`
	Z    float64           `json:"z"`
	Quat *model.Quaternion `json:"quat"`
}

func (t tfMsg) pose() model.Pose {
	p := model.Pose{
		Position:    model.Point3{X: t.X, Y: t.Y, Z: t.Z},
		Orientation: model.IdentityQuaternion(),
	}
	if t.Quat != nil {
		p.Orientation = *t.Quat
	}
	return p
}

type tfArrayMsg struct {
	Transforms []tfMsg `json:"transforms"`
}

type tfSingleMsg struct {
	Transform *tfMsg `json:"transform"`
}

// PoseFrame gathers every pose topic sharing one timestamp.
type PoseFrame struct {
	Timestamp   int64
	Body        []model.Pose
	LeftHand    []model.Pose
	RightHand   []model.Pose
	Head        *model.Pose
	HeadCam     *model.Pose
	RightEyeCam *model.Pose
	Pelvis      *model.Pose
}

// head returns the head pose, falling back to the head or first body joint.
func (f *PoseFrame) head() (model.Pose, bool) {
	if f.Head != nil {
		return *f.Head, true
	}
	if len(f.Body) > headJoint {
		return f.Body[headJoint], true
	}
	if len(f.Body) > 0 {
		return f.Body[0], true
	}
	return model.Pose{Orientation: model.IdentityQuaternion()}, false
}

// PoseFrames reads the pose frames of a file once and shares them between
// the pose sources.
type PoseFrames struct {
	path string

	once   sync.Once
	frames []*PoseFrame
	err    error
}

// NewPoseFrames creates a PoseFrames reading path.
func NewPoseFrames(path string) *PoseFrames {
	return &PoseFrames{path: path}
}

// Load returns the frames sorted by timestamp, reading the file on the
// first call.
func (p *PoseFrames) Load(ctx context.Context) ([]*PoseFrame, error) {
	p.once.Do(func() {
		p.frames, p.err = p.load(ctx)
	})
	return p.frames, p.err
}

func (p *PoseFrames) load(ctx context.Context) ([]*PoseFrame, error) {
	byTs := make(map[int64]*PoseFrame)
	dec := newDecoder()
	err := scanTopics(ctx, p.path, poseTopics, func(m message) error {
		ts := m.logTime()
		frame, ok := byTs[ts]
		if !ok {
			frame = &PoseFrame{Timestamp: ts}
			byTs[ts] = frame
		}

		if m.channel.Topic == TopicPosePelvis {
			var msg tfSingleMsg
			if err := dec.decode(m, &msg); err != nil {
				return err
			}
			if msg.Transform != nil {
				pose := msg.Transform.pose()
				frame.Pelvis = &pose
			}
			return nil
		}

		var msg tfArrayMsg
		if err := dec.decode(m, &msg); err != nil {
			return err
		}
		poses := make([]model.Pose, 0, len(msg.Transforms))
		for _, tf := range msg.Transforms {
			poses = append(poses, tf.pose())
		}
		first := func() *model.Pose {
			if len(poses) == 0 {
				return nil
			}
			return &poses[0]
		}
		switch m.channel.Topic {
		case TopicPoseBody:
			frame.Body = poses
			if frame.Pelvis == nil {
				frame.Pelvis = first()
			}
		case TopicPoseLeftHand:
			frame.LeftHand = poses
		case TopicPoseRightHand:
			frame.RightHand = poses
		case TopicPoseHead:
			frame.Head = first()
		case TopicPoseHeadCam:
			frame.HeadCam = first()
		case TopicPoseRightEyeCam:
			frame.RightEyeCam = first()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	frames := make([]*PoseFrame, 0, len(byTs))
	for _, f := range byTs {
		frames = append(frames, f)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Timestamp < frames[j].Timestamp })
	log.Info("pose frames loaded", zap.String("path", p.path), zap.Int("frames", len(frames)))
	return frames, nil
}

func positions(poses []model.Pose) []model.Point3 {
	points := make([]model.Point3, 0, len(poses))
	for _, p := range poses {
		points = append(points, p.Position)
	}
	return points
}

// skeletonFrame converts a pose frame to the input of the skeleton
// visualizer.
func skeletonFrame(f *PoseFrame) model.SkeletonFrame {
	head, ok := f.head()
	if !ok {
		log.Warn("frame has no head pose, use the origin", zap.Int64("ts", f.Timestamp))
	}
	body := positions(f.Body)
	if len(body) > headJoint {
		body[headJoint] = head.Position
	}
	headCam, rightEyeCam := head, head
	if f.HeadCam != nil {
		headCam = *f.HeadCam
	}
	if f.RightEyeCam != nil {
		rightEyeCam = *f.RightEyeCam
	}
	pelvis := model.Pose{Orientation: model.IdentityQuaternion()}
	if f.Pelvis != nil {
		pelvis = *f.Pelvis
	}
	return model.SkeletonFrame{
		Timestamp:   f.Timestamp,
		Body:        body,
		LeftHand:    positions(f.LeftHand),
		RightHand:   positions(f.RightHand),
		Head:        head.Position,
		HeadCam:     headCam.Position,
		RightEyeCam: rightEyeCam.Position,
		Pelvis:      pelvis,
	}
}

var bodyFrameNames = []string{
	"pelvis", "left_hip", "right_hip", "spine1", "left_knee",
	"right_knee", "spine2", "left_ankle", "right_ankle", "spine3",
	"left_foot", "right_foot", "neck", "left_collar", "right_collar",
	"head", "left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	// the wrists come from the hands
}

var handFrameNames = []string{
	"wrist",
	"thumb_cmc", "thumb_mcp", "thumb_ip", "thumb_tip",
	"index_finger_mcp", "index_finger_pip", "index_finger_dip", "index_finger_tip",
	"middle_finger_mcp", "middle_finger_pip", "middle_finger_dip", "middle_finger_tip",
	"ring_finger_mcp", "ring_finger_pip", "ring_finger_dip", "ring_finger_tip",
	"pinky_mcp", "pinky_pip", "pinky_dip", "pinky_tip",
}

func worldTransform(child string, p model.Pose) model.FrameTransform {
	return model.FrameTransform{
		ParentFrameID: "world",
		ChildFrameID:  child,
		Translation:   p.Position,
		Rotation:      p.Orientation,
	}
}

// tfFrame converts a pose frame to its transform tree, every frame being a
// child of the world.
func tfFrame(f *PoseFrame) model.TFFrame {
	var tfs []model.FrameTransform
	if f.Pelvis != nil {
		tfs = append(tfs, worldTransform("pelvis", *f.Pelvis))
	}
	for i, p := range f.Body {
		if i >= len(bodyFrameNames) {
			break
		}
		tfs = append(tfs, worldTransform(bodyFrameNames[i], p))
	}
	for _, hand := range []struct {
		side  string
		poses []model.Pose
	}{{"left_", f.LeftHand}, {"right_", f.RightHand}} {
		for i, p := range hand.poses {
			if i >= len(handFrameNames) {
				break
			}
			tfs = append(tfs, worldTransform(hand.side+handFrameNames[i], p))
		}
	}
	if f.HeadCam != nil {
		tfs = append(tfs, worldTransform("head_left_camera", *f.HeadCam))
	}
	if f.RightEyeCam != nil {
		tfs = append(tfs, worldTransform("head_right_camera", *f.RightEyeCam))
	}
	return model.TFFrame{Timestamp: f.Timestamp, Transforms: tfs}
}
