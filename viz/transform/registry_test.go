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
	"testing"

	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/viz/model"
	"github.com/stretchr/testify/require"
)

type namedTransform struct {
	name     string
	topic    string
	listenTo []string
}

func (n *namedTransform) Outputs() map[string]string { return map[string]string{n.name: "x"} }

func (n *namedTransform) ListenTo() []string { return n.listenTo }

func (n *namedTransform) Transform(payload any, ts int64, _ ...any) ([]model.Emit, error) {
	return []model.Emit{model.NewEmit(n.name, payload)}, nil
}

func namedFactory(name string, created *int, listenTo ...string) Factory {
	return func(topic string, _ Params) (Transform, error) {
		*created++
		return &namedTransform{name: name, topic: topic, listenTo: listenTo}, nil
	}
}

func TestRegistryResolveOrderAndCache(t *testing.T) {
	t.Parallel()

	var createdA, createdB int
	reg := NewRegistry()
	require.NoError(t, reg.Register("*/scene_update", namedFactory("a", &createdA)))
	require.NoError(t, reg.Register("scene-update", namedFactory("b", &createdB)))
	require.NoError(t, reg.Register("scene-*", namedFactory("c", &createdB, "pose")))

	instances, err := reg.Resolve("scene-update", nil)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	require.Equal(t, "b", instances[0].Transform.(*namedTransform).name)
	require.Equal(t, "c", instances[1].Transform.(*namedTransform).name)
	require.Equal(t, "scene-*", instances[1].Pattern)

	again, err := reg.Resolve("scene-update", nil)
	require.NoError(t, err)
	require.Same(t, instances[0].Transform, again[0].Transform)
	require.Equal(t, 2, createdB)

	// `*` crosses path separators
	instances, err = reg.Resolve("robot/arm/scene_update", nil)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	require.Equal(t, "robot/arm/scene_update", instances[0].Transform.(*namedTransform).topic)

	// one instance per concrete topic
	other, err := reg.Resolve("robot/scene_update", nil)
	require.NoError(t, err)
	require.NotSame(t, instances[0].Transform, other[0].Transform)
	require.Equal(t, 2, createdA)

	none, err := reg.Resolve("/Audio", nil)
	require.NoError(t, err)
	require.Empty(t, none)
	require.False(t, reg.Matches("/Audio"))
	require.True(t, reg.Matches("x/scene_update"))

	require.Equal(t, map[string]struct{}{"pose": {}}, reg.ListenedTopics())
	require.Equal(t, []string{"*/scene_update", "scene-update", "scene-*"}, reg.Patterns())
}

func TestRegistryFactoryError(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.MustRegister("t", func(topic string, params Params) (Transform, error) {
		_, err := params.Int("points", 0)
		return nil, err
	})
	_, err := reg.Resolve("t", Params{"points": "many"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "create transform t for topic t")

	_, err = reg.Resolve("t", nil)
	require.NoError(t, err)
}

func TestRegistryInvalidPattern(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.Error(t, reg.Register("[", nil))
	require.Empty(t, reg.Patterns())
}

func TestParams(t *testing.T) {
	t.Parallel()

	p := Params{"split_body": "true", "points": "12", "bad": "x"}
	b, err := p.Bool("split_body", false)
	require.NoError(t, err)
	require.True(t, b)
	b, err = p.Bool("missing", true)
	require.NoError(t, err)
	require.True(t, b)
	_, err = p.Bool("bad", false)
	require.True(t, cerror.Is(err, cerror.ErrTransformInvalidParam))

	i, err := p.Int("points", 45)
	require.NoError(t, err)
	require.Equal(t, 12, i)
	i, err = p.Int("missing", 45)
	require.NoError(t, err)
	require.Equal(t, 45, i)
	_, err = p.Int("bad", 0)
	require.Error(t, err)

	require.Equal(t, "x", p.String("bad", "y"))
	require.Equal(t, "y", p.String("missing", "y"))

	merged := p.Merge(Params{"points": "3"})
	require.Equal(t, "3", merged["points"])
	require.Equal(t, "12", p["points"])
}
