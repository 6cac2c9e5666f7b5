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

package transform

import (
	"sync"

	"github.com/gobwas/glob"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

type registration struct {
	pattern string
	matcher glob.Glob
	factory Factory
}

// Instance is a Transform resolved for a concrete topic.
type Instance struct {
	// Pattern is the registration pattern that matched the topic.
	Pattern string
	Transform
}

// Registry maps topic patterns to transform factories.
//
// Patterns use shell-style globbing where `*` also matches `/`.
type Registry struct {
	mu            sync.Mutex
	registrations []registration
	resolved      map[string][]Instance
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{resolved: make(map[string][]Instance)}
}

// Register adds a factory for every topic matching pattern.
func (r *Registry) Register(pattern string, factory Factory) error {
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return errors.Annotatef(err, "compile topic pattern %s", pattern)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations = append(r.registrations, registration{
		pattern: pattern,
		matcher: matcher,
		factory: factory,
	})
	// new registrations may match topics that were resolved already
	r.resolved = make(map[string][]Instance)
	return nil
}

// MustRegister is like Register but panics on an invalid pattern.
func (r *Registry) MustRegister(pattern string, factory Factory) {
	if err := r.Register(pattern, factory); err != nil {
		log.Panic("register transform failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// Patterns returns the registered patterns in registration order.
func (r *Registry) Patterns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	patterns := make([]string, 0, len(r.registrations))
	for _, reg := range r.registrations {
		patterns = append(patterns, reg.pattern)
	}
	return patterns
}

// Matches reports whether any pattern matches topic.
func (r *Registry) Matches(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.registrations {
		if reg.matcher.Match(topic) {
			return true
		}
	}
	return false
}

// Resolve returns one new Transform per factory whose pattern matches topic,
// in registration order. The result is cached, so every topic is
// instantiated once. A topic without a match resolves to an empty list.
func (r *Registry) Resolve(topic string, params Params) ([]Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if instances, ok := r.resolved[topic]; ok {
		return instances, nil
	}
	var instances []Instance
	for _, reg := range r.registrations {
		if !reg.matcher.Match(topic) {
			continue
		}
		t, err := reg.factory(topic, params)
		if err != nil {
			return nil, errors.Annotatef(err, "create transform %s for topic %s", reg.pattern, topic)
		}
		instances = append(instances, Instance{Pattern: reg.pattern, Transform: t})
	}
	r.resolved[topic] = instances
	log.Debug("transforms resolved",
		zap.String("topic", topic), zap.Int("count", len(instances)))
	return instances, nil
}

// ListenedTopics returns the union of the ListenTo topics of every resolved
// transform.
func (r *Registry) ListenedTopics() map[string]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	topics := make(map[string]struct{})
	for _, instances := range r.resolved {
		for _, inst := range instances {
			for _, t := range inst.ListenTo() {
				topics[t] = struct{}{}
			}
		}
	}
	return topics
}
