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

package pipeline

import (
	"github.com/lwviz/lwviz/viz/model"
)

// correlator keeps the latest payload of every listened topic. It is owned
// by the producer goroutine.
type correlator struct {
	listened map[string]struct{}
	latest   map[string]any
}

func newCorrelator(listened map[string]struct{}) *correlator {
	return &correlator{
		listened: listened,
		latest:   make(map[string]any, len(listened)),
	}
}

// observe records r if its topic is listened to.
func (c *correlator) observe(r model.Record) {
	if _, ok := c.listened[r.Topic]; ok {
		c.latest[r.Topic] = r.Payload
	}
}

// snapshot returns the latest payload of every topic, nil for the topics
// not seen yet.
func (c *correlator) snapshot(topics []string) []any {
	if len(topics) == 0 {
		return nil
	}
	values := make([]any, len(topics))
	for i, topic := range topics {
		values[i] = c.latest[topic]
	}
	return values
}
