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

package convert

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/foxglove/mcap/go/mcap"
	"github.com/goccy/go-json"
	"github.com/lwviz/lwviz/pkg/config"
	"github.com/lwviz/lwviz/viz/sink"
	"github.com/lwviz/lwviz/viz/source"
	"github.com/lwviz/lwviz/viz/transform"
	"github.com/lwviz/lwviz/viz/visualizer"
	"github.com/stretchr/testify/require"
)

type inputMsg struct {
	topic   string
	ts      int64
	payload any
}

func transforms(n int) map[string]any {
	tfs := make([]map[string]float64, n)
	for i := range tfs {
		tfs[i] = map[string]float64{"x": float64(i), "y": 1, "z": 2}
	}
	return map[string]any{"transforms": tfs}
}

// writeInput writes msgs as JSON messages of an indexed MCAP file.
func writeInput(t *testing.T, msgs ...inputMsg) string {
	path := filepath.Join(t.TempDir(), "session.mcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := mcap.NewWriter(f, &mcap.WriterOptions{Chunked: true, ChunkSize: 1024})
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(&mcap.Header{Library: "lwviz-test"}))
	require.NoError(t, w.WriteSchema(&mcap.Schema{ID: 1, Name: "json", Encoding: "jsonschema", Data: []byte("{}")}))
	channels := make(map[string]uint16)
	for i, m := range msgs {
		id, ok := channels[m.topic]
		if !ok {
			id = uint16(len(channels) + 1)
			require.NoError(t, w.WriteChannel(&mcap.Channel{
				ID: id, SchemaID: 1, Topic: m.topic, MessageEncoding: source.EncodingJSON,
			}))
			channels[m.topic] = id
		}
		data, err := json.Marshal(m.payload)
		require.NoError(t, err)
		require.NoError(t, w.WriteMessage(&mcap.Message{
			ChannelID: id, Sequence: uint32(i), LogTime: uint64(m.ts), PublishTime: uint64(m.ts), Data: data,
		}))
	}
	require.NoError(t, w.Close())
	return path
}

func stdInput(t *testing.T) string {
	return writeInput(t,
		inputMsg{source.TopicSessionMetadata, 50, map[string]any{
			"task_info": map[string]any{"task_name": "fold"},
		}},
		inputMsg{source.TopicAnnotationSegments, 60, map[string]any{"segment": map[string]any{
			"description": "fold the towel", "skill": "fold", "start_frame": 0, "end_frame": 1,
		}}},
		inputMsg{source.TopicPoseBody, 100, transforms(16)},
		inputMsg{source.TopicPoseHead, 100, transforms(1)},
		inputMsg{source.TopicPoseLeftHand, 100, transforms(21)},
		inputMsg{source.TopicPoseBody, 200, transforms(16)},
		inputMsg{source.TopicPoseHead, 200, transforms(1)},
		inputMsg{"/camera/rgb", 150, map[string]any{"ignored": true}},
	)
}

type output struct {
	channels map[string]string
	counts   map[string]int
	meta     map[string]string
}

func readOutput(t *testing.T, path string) output {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	reader, err := mcap.NewReader(f)
	require.NoError(t, err)
	info, err := reader.Info()
	require.NoError(t, err)

	out := output{channels: make(map[string]string), counts: make(map[string]int)}
	for _, ch := range info.Channels {
		out.channels[ch.Topic] = info.Schemas[ch.SchemaID].Name
	}
	require.Len(t, info.MetadataIndexes, 1)
	meta, err := reader.GetMetadata(info.MetadataIndexes[0].Offset)
	require.NoError(t, err)
	out.meta = meta.Metadata

	it, err := reader.Messages(mcap.UsingIndex(true), mcap.InOrder(mcap.LogTimeOrder))
	require.NoError(t, err)
	for {
		_, ch, _, err := it.Next(nil)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out.counts[ch.Topic]++
	}
	return out
}

func validConfig(t *testing.T, input string) *config.ConvertConfig {
	cfg := config.GetDefaultConvertConfig()
	cfg.Input = input
	cfg.Concurrency = 2
	cfg.ChunkSize = 2
	require.NoError(t, cfg.ValidateAndAdjust())
	return cfg
}

func TestConvert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	input := stdInput(t)
	cfg := validConfig(t, input)
	p, err := NewStdPipeline(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, sink.DefaultOutputPath(input), p.Output)
	require.NoError(t, p.Run(ctx))
	require.Zero(t, p.Stats().TransformErrors)

	out := readOutput(t, p.Output)
	for _, topic := range []string{
		"/subtask-annotation/subtask_annotation",
		"/subtask-annotation/annotation_image_annotations",
		"/low-quality-annotation/low_quality_annotations",
		"/tf-tree/tf_tree",
		"/scene-update/body_keypoints",
		"/scene-update/left_hand_keyponts",
		"/scene-update/head_pose_trajectory",
	} {
		require.Contains(t, out.channels, topic)
	}
	require.NotContains(t, out.channels, "/camera/rgb")
	require.Equal(t, 2, out.counts["/tf-tree/tf_tree"])
	require.Equal(t, 2, out.counts["/scene-update/body_keypoints"])
	require.Equal(t, 1, out.counts["/scene-update/left_hand_keyponts"])
	require.Equal(t, 2, out.counts["/scene-update/head_pose_trajectory"])
	require.Equal(t, 2, out.counts["/subtask-annotation/subtask_annotation"])
	require.Equal(t, 2, out.counts["/low-quality-annotation/low_quality_annotations"])
	require.Equal(t, "fold", out.meta[source.MetaTaskID])
	require.Equal(t, p.RunID, out.meta[sink.MetaRunID])
}

func TestConvertWindowAndSplitBody(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := validConfig(t, stdInput(t))
	start := int64(150)
	cfg.StartNs = &start
	cfg.SplitBody = true
	cfg.Compression = "none"
	cfg.Output = filepath.Join(t.TempDir(), "custom.mcap")
	require.NoError(t, Run(ctx, cfg))

	out := readOutput(t, cfg.Output)
	require.Contains(t, out.channels, "/scene-update/upper_body_keypoints")
	require.NotContains(t, out.channels, "/scene-update/body_keypoints")
	require.NotContains(t, out.channels, "/scene-update/left_hand_keyponts_2d")
	require.Equal(t, 1, out.counts["/tf-tree/tf_tree"])
	require.Equal(t, 1, out.counts["/scene-update/lower_body_keypoints"])
}

func TestConvertMissingInput(t *testing.T) {
	t.Parallel()

	cfg := config.GetDefaultConvertConfig()
	cfg.Input = filepath.Join(t.TempDir(), "missing.mcap")
	_, err := NewStdPipeline(context.Background(), cfg)
	require.Error(t, err)
}

func TestStdSources(t *testing.T) {
	t.Parallel()

	reg := transform.NewRegistry()
	visualizer.Register(reg)
	sources := StdSources("in.mcap", reg, false, 0)
	require.Len(t, sources, 6)
	require.Equal(t, []string{source.TopicSubtaskAnnotation}, sources[0].Topics())
	require.Equal(t, []string{source.TopicLowQuality}, sources[1].Topics())
	require.Equal(t, []string{source.TopicTFTree}, sources[2].Topics())
	require.Equal(t, []string{source.TopicSceneUpdate}, sources[3].Topics())
	require.Equal(t, []string{source.TopicHeadTrajectory}, sources[4].Topics())

	split := StdSources("in.mcap", reg, true, 0)[3].Params()
	on, err := split.Bool(visualizer.ParamSplitBody, false)
	require.NoError(t, err)
	require.True(t, on)
}
