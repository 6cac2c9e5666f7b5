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
	"os"
	"path/filepath"
	"testing"

	"github.com/foxglove/mcap/go/mcap"
	"github.com/goccy/go-json"
	"github.com/lwviz/lwviz/viz/schema"
	"github.com/stretchr/testify/require"
)

type fixtureMsg struct {
	topic string
	ts    int64
	// payload is JSON encoded, unless it is a *schema.Message
	payload any
}

type fixtureWriter struct {
	t        *testing.T
	w        *mcap.Writer
	schemas  map[string]uint16
	channels map[string]uint16
	seq      uint32
}

// writeFixture writes msgs to a new indexed MCAP file and returns its path.
func writeFixture(t *testing.T, msgs ...fixtureMsg) string {
	path := filepath.Join(t.TempDir(), "input.mcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := mcap.NewWriter(f, &mcap.WriterOptions{
		Chunked:     true,
		ChunkSize:   512,
		Compression: mcap.CompressionZSTD,
	})
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(&mcap.Header{Library: "lwviz-test"}))
	fw := &fixtureWriter{
		t:        t,
		w:        w,
		schemas:  make(map[string]uint16),
		channels: make(map[string]uint16),
	}
	for _, m := range msgs {
		fw.write(m)
	}
	require.NoError(t, w.Close())
	return path
}

func (fw *fixtureWriter) schemaID(name, encoding string, data []byte) uint16 {
	if id, ok := fw.schemas[name]; ok {
		return id
	}
	id := uint16(len(fw.schemas) + 1)
	require.NoError(fw.t, fw.w.WriteSchema(&mcap.Schema{ID: id, Name: name, Encoding: encoding, Data: data}))
	fw.schemas[name] = id
	return id
}

func (fw *fixtureWriter) write(m fixtureMsg) {
	var (
		data     []byte
		err      error
		schemaID uint16
		encoding string
	)
	if msg, ok := m.payload.(*schema.Message); ok {
		data, err = msg.Marshal()
		require.NoError(fw.t, err)
		s, err := schema.Lookup(string(msg.Interface().ProtoReflect().Descriptor().FullName()))
		require.NoError(fw.t, err)
		schemaID = fw.schemaID(s.Name, s.Encoding, s.Data)
		encoding = EncodingProtobuf
	} else {
		data, err = json.Marshal(m.payload)
		require.NoError(fw.t, err)
		schemaID = fw.schemaID("json", "jsonschema", []byte("{}"))
		encoding = EncodingJSON
	}
	id, ok := fw.channels[m.topic]
	if !ok {
		id = uint16(len(fw.channels) + 1)
		require.NoError(fw.t, fw.w.WriteChannel(&mcap.Channel{
			ID:              id,
			SchemaID:        schemaID,
			Topic:           m.topic,
			MessageEncoding: encoding,
		}))
		fw.channels[m.topic] = id
	}
	fw.seq++
	require.NoError(fw.t, fw.w.WriteMessage(&mcap.Message{
		ChannelID:   id,
		Sequence:    fw.seq,
		LogTime:     uint64(m.ts),
		PublishTime: uint64(m.ts),
		Data:        data,
	}))
}

type jsonTF struct {
	X    float64            `json:"x"`
	Y    float64            `json:"y"`
	Z    float64            `json:"z"`
	Quat map[string]float64 `json:"quat,omitempty"`
}

func jsonTFs(n int, base float64) map[string]any {
	tfs := make([]jsonTF, n)
	for i := range tfs {
		tfs[i] = jsonTF{X: base + float64(i), Y: 1, Z: 2}
	}
	return map[string]any{"transforms": tfs}
}
