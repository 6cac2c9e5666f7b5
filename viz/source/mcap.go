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
	"os"
	"sort"

	"github.com/foxglove/mcap/go/mcap"
	"github.com/pingcap/errors"
	"go.uber.org/multierr"
)

// mcapFile is an open, indexed MCAP file.
type mcapFile struct {
	path   string
	f      *os.File
	reader *mcap.Reader
}

func openMCAP(path string) (*mcapFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	reader, err := mcap.NewReader(f)
	if err != nil {
		return nil, multierr.Append(errors.Annotatef(err, "read mcap %s", path), f.Close())
	}
	return &mcapFile{path: path, f: f, reader: reader}, nil
}

// topics returns the topics of every channel in the file, sorted.
func (m *mcapFile) topics() ([]string, error) {
	info, err := m.reader.Info()
	if err != nil {
		return nil, errors.Annotatef(err, "read mcap summary %s", m.path)
	}
	seen := make(map[string]struct{}, len(info.Channels))
	topics := make([]string, 0, len(info.Channels))
	for _, ch := range info.Channels {
		if _, ok := seen[ch.Topic]; ok {
			continue
		}
		seen[ch.Topic] = struct{}{}
		topics = append(topics, ch.Topic)
	}
	sort.Strings(topics)
	return topics, nil
}

// messages iterates the messages of topics in log time order.
func (m *mcapFile) messages(topics ...string) (mcap.MessageIterator, error) {
	it, err := m.reader.Messages(
		mcap.UsingIndex(true),
		mcap.WithTopics(topics),
		mcap.InOrder(mcap.LogTimeOrder),
	)
	return it, errors.Annotatef(err, "iterate mcap %s", m.path)
}

func (m *mcapFile) Close() error {
	return errors.Trace(m.f.Close())
}

// message is one decoded-on-demand MCAP message.
type message struct {
	schema  *mcap.Schema
	channel *mcap.Channel
	msg     *mcap.Message
}

func (m message) logTime() int64 {
	return int64(m.msg.LogTime)
}

// scanTopics calls fn for every message of topics in log time order.
func scanTopics(ctx context.Context, path string, topics []string, fn func(message) error) (err error) {
	file, err := openMCAP(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()
	it, err := file.messages(topics...)
	if err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		schema, channel, msg, err := it.Next(nil)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Annotatef(err, "read mcap %s", path)
		}
		if err := fn(message{schema: schema, channel: channel, msg: msg}); err != nil {
			return err
		}
	}
}

// logTimes returns the sorted log times of every message on topic.
func logTimes(ctx context.Context, path, topic string) ([]int64, error) {
	var times []int64
	err := scanTopics(ctx, path, []string{topic}, func(m message) error {
		times = append(times, m.logTime())
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times, nil
}
