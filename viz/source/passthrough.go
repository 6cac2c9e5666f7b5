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
	"context"
	"io"

	"github.com/foxglove/mcap/go/mcap"
	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/transform"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// PassthroughSource streams the input channels some transform is registered
// for, decoded to generic maps.
type PassthroughSource struct {
	path  string
	match func(topic string) bool

	file   *mcapFile
	it     mcap.MessageIterator
	dec    *decoder
	topics []string
}

// NewPassthroughSource creates a PassthroughSource over the channels of
// path whose topic satisfies match.
func NewPassthroughSource(path string, match func(topic string) bool) *PassthroughSource {
	return &PassthroughSource{path: path, match: match}
}

// Setup implements Source.
func (s *PassthroughSource) Setup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	file, err := openMCAP(s.path)
	if err != nil {
		return cerror.WrapError(cerror.ErrSourceSetup, err, s.path)
	}
	all, err := file.topics()
	if err != nil {
		return multierr.Append(cerror.WrapError(cerror.ErrSourceSetup, err, s.path), file.Close())
	}
	s.topics = s.topics[:0]
	for _, topic := range all {
		if s.match(topic) {
			s.topics = append(s.topics, topic)
		}
	}
	if len(s.topics) == 0 {
		return errors.Trace(file.Close())
	}
	it, err := file.messages(s.topics...)
	if err != nil {
		return multierr.Append(cerror.WrapError(cerror.ErrSourceSetup, err, s.path), file.Close())
	}
	s.file, s.it, s.dec = file, it, newDecoder()
	log.Info("passthrough channels found", zap.String("path", s.path), zap.Strings("topics", s.topics))
	return nil
}

// Topics implements Source.
func (s *PassthroughSource) Topics() []string { return s.topics }

// Params implements Source.
func (s *PassthroughSource) Params() transform.Params { return nil }

// Next implements Source. Messages that can not be decoded are logged and
// skipped.
func (s *PassthroughSource) Next(ctx context.Context) (model.Record, error) {
	if s.it == nil {
		return model.Record{}, io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			return model.Record{}, errors.Trace(err)
		}
		schema, channel, msg, err := s.it.Next(nil)
		if err == io.EOF {
			return model.Record{}, io.EOF
		}
		if err != nil {
			return model.Record{}, cerror.WrapError(cerror.ErrSourceRead, err, s.path)
		}
		m := message{schema: schema, channel: channel, msg: msg}
		payload, err := s.dec.decodeGeneric(m)
		if err != nil {
			log.Warn("skip undecodable message",
				zap.String("topic", channel.Topic), zap.Int64("ts", m.logTime()), zap.Error(err))
			continue
		}
		return model.Record{Topic: channel.Topic, Payload: payload, Timestamp: m.logTime()}, nil
	}
}

// Close implements Source.
func (s *PassthroughSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.it = nil, nil
	return err
}
