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
	"github.com/goccy/go-json"
	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/schema"
	"github.com/lwviz/lwviz/viz/transform"
	"github.com/pingcap/errors"
)

// Annotation renders the subtask annotation of every frame, as a
// lightwheel.SubtaskAnnotation and as a text box over the camera images.
type Annotation struct {
	base
	subtaskTopic string
	imageTopic   string
}

// NewAnnotation creates an Annotation visualizer.
func NewAnnotation(topic string, _ transform.Params) (transform.Transform, error) {
	prefix := topicPrefix(topic)
	a := &Annotation{
		subtaskTopic: prefix + "/subtask_annotation",
		imageTopic:   prefix + "/annotation_image_annotations",
	}
	a.base = base{
		topic: topic,
		outputs: map[string]string{
			a.subtaskTopic: schema.SubtaskAnnotation,
			a.imageTopic:   schema.ImageAnnotations,
		},
	}
	return a, nil
}

type subtaskDescription struct {
	Description string `json:"description"`
	Skill       string `json:"skill"`
}

// Transform implements transform.Transform.
func (a *Annotation) Transform(payload any, ts int64, _ ...any) ([]model.Emit, error) {
	frame, err := decodePayload[model.SubtaskFrame](a.topic, payload)
	if err != nil || frame == nil {
		return nil, err
	}
	ts = stamp(frame.Timestamp, ts)

	desc, err := json.Marshal(subtaskDescription{Description: frame.Description, Skill: frame.Skill})
	if err != nil {
		return nil, errors.Trace(err)
	}
	subtask, err := schema.New(schema.SubtaskAnnotation)
	if err != nil {
		return nil, err
	}
	subtask.Set("data", string(desc)).SetTime("timestamp", ts)

	images, err := schema.New(schema.ImageAnnotations)
	if err != nil {
		return nil, err
	}
	if frame.HasAnnotation {
		text := images.Append("texts")
		text.SetTime("timestamp", ts).
			Set("text", frame.Description+"\nskill: "+frame.Skill).
			Set("font_size", 50)
		text.Sub("position").Set("x", 60).Set("y", 160)
		text.SetRGBA("text_color", 1, 1, 1, 1)
		text.SetRGBA("background_color", 40/255.0, 40/255.0, 40/255.0, 1)
	}

	return []model.Emit{
		model.NewEmit(a.subtaskTopic, subtask),
		model.NewEmit(a.imageTopic, images),
	}, nil
}
