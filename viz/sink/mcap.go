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

package sink

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/foxglove/mcap/go/mcap"
	"github.com/google/uuid"
	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/pkg/version"
	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/schema"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// MetadataName is the name of the file level metadata record.
	MetadataName = "metadata"
	// MetaRunID identifies the conversion run that produced the file.
	MetaRunID = "run_id"

	// DefaultChunkSize is the default uncompressed size of an MCAP chunk.
	DefaultChunkSize = 4 * 1024 * 1024
)

// ParseCompression returns the MCAP compression format named by s.
func ParseCompression(s string) (mcap.CompressionFormat, error) {
	switch strings.ToLower(s) {
	case "zstd":
		return mcap.CompressionZSTD, nil
	case "lz4":
		return mcap.CompressionLZ4, nil
	case "", "none":
		return mcap.CompressionNone, nil
	}
	return "", cerror.ErrInvalidConfig.GenWithStackByArgs("unsupported compression " + s)
}

// DefaultOutputPath returns <input dir>/output/<input stem>_vis.mcap.
func DefaultOutputPath(input string) string {
	dir, base := filepath.Split(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "output", stem+"_vis.mcap")
}

// MCAPOptions configures a MCAPSink.
type MCAPOptions struct {
	Compression mcap.CompressionFormat
	ChunkSize   int64
	// Metadata is written to the file level metadata record on Close.
	Metadata map[string]string
}

// MCAPSink writes the results to a chunked MCAP file, one channel per
// output topic.
type MCAPSink struct {
	path  string
	opts  MCAPOptions
	runID string
	table map[string]schema.Schema

	f        *os.File
	w        *mcap.Writer
	channels map[string]uint16
	seq      map[uint16]uint32
	written  uint64
	closed   bool
}

var _ Sink = (*MCAPSink)(nil)

// NewMCAPSink creates a sink writing path.
func NewMCAPSink(path string, opts MCAPOptions) *MCAPSink {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &MCAPSink{
		path:  path,
		opts:  opts,
		runID: uuid.NewString(),
	}
}

// Path returns the output path.
func (s *MCAPSink) Path() string { return s.path }

// RunID returns the id recorded in the file metadata.
func (s *MCAPSink) RunID() string { return s.runID }

// SetSchemaTable implements Sink.
func (s *MCAPSink) SetSchemaTable(table map[string]schema.Schema) {
	s.table = table
}

// Open creates the file and registers one schema and one channel per
// output topic.
func (s *MCAPSink) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	if s.w != nil {
		return nil
	}
	if s.closed {
		return cerror.ErrSinkClosed.GenWithStackByArgs()
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return cerror.WrapError(cerror.ErrSinkWrite, err)
	}
	f, err := os.Create(s.path)
	if err != nil {
		return cerror.WrapError(cerror.ErrSinkWrite, err)
	}
	w, err := mcap.NewWriter(f, &mcap.WriterOptions{
		Chunked:     true,
		ChunkSize:   s.opts.ChunkSize,
		Compression: s.opts.Compression,
	})
	if err != nil {
		return multierr.Append(cerror.WrapError(cerror.ErrSinkWrite, err), f.Close())
	}
	s.f, s.w = f, w
	if err := s.writeHeader(); err != nil {
		// keep f and w, Close releases them
		return err
	}
	log.Info("mcap sink opened",
		zap.String("path", s.path),
		zap.String("compression", string(s.opts.Compression)),
		zap.Int("channels", len(s.channels)),
		zap.String("runID", s.runID))
	return nil
}

func (s *MCAPSink) writeHeader() error {
	if err := s.w.WriteHeader(&mcap.Header{Library: version.Library()}); err != nil {
		return cerror.WrapError(cerror.ErrSinkWrite, err)
	}
	topics := make([]string, 0, len(s.table))
	for topic := range s.table {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	schemaIDs := make(map[string]uint16)
	s.channels = make(map[string]uint16, len(topics))
	s.seq = make(map[uint16]uint32, len(topics))
	for _, topic := range topics {
		sch := s.table[topic]
		schemaID, ok := schemaIDs[sch.Name]
		if !ok {
			schemaID = uint16(len(schemaIDs) + 1)
			err := s.w.WriteSchema(&mcap.Schema{
				ID:       schemaID,
				Name:     sch.Name,
				Encoding: sch.Encoding,
				Data:     sch.Data,
			})
			if err != nil {
				return cerror.WrapError(cerror.ErrSinkWrite, err)
			}
			schemaIDs[sch.Name] = schemaID
		}
		channelID := uint16(len(s.channels) + 1)
		err := s.w.WriteChannel(&mcap.Channel{
			ID:              channelID,
			SchemaID:        schemaID,
			Topic:           topic,
			MessageEncoding: sch.Encoding,
		})
		if err != nil {
			return cerror.WrapError(cerror.ErrSinkWrite, err)
		}
		s.channels[topic] = channelID
	}
	return nil
}

// Write implements Sink.
func (s *MCAPSink) Write(result model.Result) error {
	if s.closed {
		return cerror.ErrSinkClosed.GenWithStackByArgs()
	}
	if s.w == nil {
		return cerror.ErrSinkNotReady.GenWithStackByArgs(s.path)
	}
	id, ok := s.channels[result.Topic]
	if !ok {
		return cerror.ErrSinkUnknownTopic.GenWithStackByArgs(result.Topic)
	}
	s.seq[id]++
	ts := uint64(result.Timestamp)
	err := s.w.WriteMessage(&mcap.Message{
		ChannelID:   id,
		Sequence:    s.seq[id],
		LogTime:     ts,
		PublishTime: ts,
		Data:        result.Data,
	})
	if err != nil {
		return cerror.WrapError(cerror.ErrSinkWrite, err)
	}
	s.written++
	return nil
}

// Close writes the file metadata and closes the file.
func (s *MCAPSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.w == nil {
		return nil
	}

	meta := make(map[string]string, len(s.opts.Metadata)+1)
	for k, v := range s.opts.Metadata {
		meta[k] = v
	}
	meta[MetaRunID] = s.runID
	var err error
	if werr := s.w.WriteMetadata(&mcap.Metadata{Name: MetadataName, Metadata: meta}); werr != nil {
		err = cerror.WrapError(cerror.ErrSinkWrite, werr)
	}
	err = multierr.Append(err, errors.Annotate(s.w.Close(), "finish mcap"))
	var size uint64
	if info, serr := s.f.Stat(); serr == nil {
		size = uint64(info.Size())
	}
	err = multierr.Append(err, errors.Trace(s.f.Close()))
	s.w, s.f = nil, nil

	if err != nil {
		log.Warn("mcap sink closed with error", zap.String("path", s.path), zap.Error(err))
		return err
	}
	log.Info("mcap sink closed",
		zap.String("path", s.path),
		zap.Uint64("messages", s.written),
		zap.String("size", humanize.Bytes(size)))
	return nil
}
