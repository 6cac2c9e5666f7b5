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
	"encoding/binary"
	"math"

	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/schema"
	"github.com/lwviz/lwviz/viz/transform"
)

const staticPointCloudTopic = "/pointcloud/static"

// PointCloudStatic packs the static scene point cloud into a
// foxglove.PointCloud.
type PointCloudStatic struct {
	base
}

// NewPointCloudStatic creates a PointCloudStatic visualizer.
func NewPointCloudStatic(topic string, _ transform.Params) (transform.Transform, error) {
	return &PointCloudStatic{
		base: base{
			topic:   topic,
			outputs: map[string]string{staticPointCloudTopic: schema.PointCloud},
		},
	}, nil
}

type packedField struct {
	name   string
	offset uint32
	typ    string
}

var (
	positionFields = []packedField{
		{"x", 0, "FLOAT32"}, {"y", 4, "FLOAT32"}, {"z", 8, "FLOAT32"},
	}
	colorFields = []packedField{
		{"red", 12, "UINT8"}, {"green", 13, "UINT8"}, {"blue", 14, "UINT8"}, {"alpha", 15, "UINT8"},
	}
)

// Transform implements transform.Transform. Clouds not flagged as static
// scenes, and empty clouds, are skipped.
func (p *PointCloudStatic) Transform(payload any, ts int64, _ ...any) ([]model.Emit, error) {
	cloud, err := decodePayload[model.PointCloud](p.topic, payload)
	if err != nil || cloud == nil || !cloud.StaticScene || len(cloud.Points) == 0 {
		return nil, err
	}

	fields := positionFields
	stride := 12
	if cloud.Colored {
		fields = append(append([]packedField{}, positionFields...), colorFields...)
		stride = 16
	}
	data := make([]byte, len(cloud.Points)*stride)
	for i, pt := range cloud.Points {
		buf := data[i*stride:]
		binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(pt.X))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(pt.Y))
		binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(pt.Z))
		if cloud.Colored {
			buf[12], buf[13], buf[14], buf[15] = pt.Red, pt.Green, pt.Blue, pt.Alpha
		}
	}

	msg, err := schema.New(schema.PointCloud)
	if err != nil {
		return nil, err
	}
	msg.SetTime("timestamp", ts).
		Set("frame_id", worldFrame).
		Set("point_stride", stride).
		Set("data", data)
	pose := msg.Sub("pose")
	pose.SetXYZ("position", 0, 0, 0)
	pose.Sub("orientation").Set("x", 0.0).Set("y", 0.0).Set("z", 0.0).Set("w", 1.0)
	for _, f := range fields {
		msg.Append("fields").Set("name", f.name).Set("offset", f.offset).Set("type", f.typ)
	}
	return []model.Emit{model.NewEmit(staticPointCloudTopic, msg)}, nil
}
