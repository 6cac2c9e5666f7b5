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

package model

// Point3 is a position in the world frame.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is a rotation, w being the real part.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityQuaternion returns the rotation that does nothing.
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// Pose is a position plus an orientation.
type Pose struct {
	Position    Point3     `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// FrameTransform places a child frame relative to its parent.
type FrameTransform struct {
	ParentFrameID string     `json:"parent_frame_id"`
	ChildFrameID  string     `json:"child_frame_id"`
	Translation   Point3     `json:"translation"`
	Rotation      Quaternion `json:"rotation"`
}

// TFFrame is the transform tree of one pose frame.
type TFFrame struct {
	Timestamp  int64            `json:"timestamp"`
	Transforms []FrameTransform `json:"tf_data"`
}

// SkeletonFrame holds the key points of one pose frame.
type SkeletonFrame struct {
	Timestamp   int64    `json:"timestamp"`
	Body        []Point3 `json:"body"`
	LeftHand    []Point3 `json:"left_hand"`
	RightHand   []Point3 `json:"right_hand"`
	Head        Point3   `json:"head_pose"`
	HeadCam     Point3   `json:"headcam_pose"`
	RightEyeCam Point3   `json:"right_eye_cam_pose"`
	Pelvis      Pose     `json:"pelvis_pose"`
}

// HeadTrajectory is the recent head path ending at the current frame.
type HeadTrajectory struct {
	Timestamp int64    `json:"timestamp"`
	Points    []Point3 `json:"trajectory_points"`
	// Current is nil when the frame has no head position.
	Current *Point3 `json:"current_head"`
}

// SubtaskFrame is the subtask annotation state of one pose frame.
type SubtaskFrame struct {
	FrameNumber   int    `json:"frame_number"`
	Timestamp     int64  `json:"timestamp"`
	HasAnnotation bool   `json:"has_annotation"`
	Description   string `json:"description"`
	Skill         string `json:"skill"`
	StartFrame    int    `json:"start_frame"`
	EndFrame      int    `json:"end_frame"`
}

// LowQualityFrame lists the quality problems flagged on one pose frame.
type LowQualityFrame struct {
	FrameNumber  int      `json:"frame_number"`
	Timestamp    int64    `json:"timestamp"`
	ProblemTypes []string `json:"problem_types"`
}

// AudioBlock is one block of raw audio samples.
type AudioBlock struct {
	Data             []byte `json:"data"`
	Format           string `json:"format"`
	SampleRate       uint32 `json:"sample_rate"`
	NumberOfChannels uint32 `json:"number_of_channels"`
}

// CloudPoint is one point of a point cloud. Color is only used when the
// cloud is colored.
type CloudPoint struct {
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Z     float32 `json:"z"`
	Red   uint8   `json:"red"`
	Green uint8   `json:"green"`
	Blue  uint8   `json:"blue"`
	Alpha uint8   `json:"alpha"`
}

// PointCloud is a point cloud in the world frame.
type PointCloud struct {
	StaticScene bool         `json:"static_scene"`
	Colored     bool         `json:"colored"`
	Points      []CloudPoint `json:"points"`
}
