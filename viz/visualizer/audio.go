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

const defaultAudioFormat = "pcm-s16"

// Audio converts audio blocks to foxglove.RawAudio.
type Audio struct {
	base
	outputTopic string
}

// NewAudio creates an Audio visualizer.
func NewAudio(topic string, _ transform.Params) (transform.Transform, error) {
	output := topicPrefix(topic) + "/audio"
	return &Audio{
		base: base{
			topic:   topic,
			outputs: map[string]string{output: schema.RawAudio},
		},
		outputTopic: output,
	}, nil
}

// Transform implements transform.Transform.
func (a *Audio) Transform(payload any, ts int64, _ ...any) ([]model.Emit, error) {
	block, err := decodePayload[model.AudioBlock](a.topic, payload)
	if err != nil || block == nil {
		return nil, err
	}
	format := block.Format
	if format == "" {
		format = defaultAudioFormat
	}
	msg, err := schema.New(schema.RawAudio)
	if err != nil {
		return nil, err
	}
	msg.SetTime("timestamp", ts).
		Set("data", block.Data).
		Set("format", format).
		Set("sample_rate", block.SampleRate).
		Set("number_of_channels", block.NumberOfChannels)
	return []model.Emit{model.NewEmit(a.outputTopic, msg)}, nil
}
