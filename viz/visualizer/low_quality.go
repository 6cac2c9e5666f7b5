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

// LowQuality writes one text box per quality problem of a frame.
type LowQuality struct {
	base
	outputTopic string
}

// NewLowQuality creates a LowQuality visualizer.
func NewLowQuality(topic string, _ transform.Params) (transform.Transform, error) {
	output := topicPrefix(topic) + "/low_quality_annotations"
	return &LowQuality{
		base: base{
			topic:   topic,
			outputs: map[string]string{output: schema.ImageAnnotations},
		},
		outputTopic: output,
	}, nil
}

// Transform implements transform.Transform. A frame without problems still
// yields a message, which clears the texts of the previous frame.
func (l *LowQuality) Transform(payload any, ts int64, _ ...any) ([]model.Emit, error) {
	frame, err := decodePayload[model.LowQualityFrame](l.topic, payload)
	if err != nil || frame == nil {
		return nil, err
	}
	ts = stamp(frame.Timestamp, ts)

	msg, err := schema.New(schema.ImageAnnotations)
	if err != nil {
		return nil, err
	}
	for i, name := range frame.ProblemTypes {
		text := msg.Append("texts")
		text.SetTime("timestamp", ts).
			Set("text", "[low-quality] "+name).
			Set("font_size", 90)
		text.Sub("position").Set("x", 20).Set("y", 140+i*100)
		text.SetRGBA("text_color", 1, 0.2, 0.2, 0.6)
		text.SetRGBA("background_color", 0, 0, 0, 0.55)
	}
	return []model.Emit{model.NewEmit(l.outputTopic, msg)}, nil
}
