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

package config

import (
	"math"
	"strings"

	"github.com/docker/go-units"
	"github.com/lwviz/lwviz/pkg/logutil"
)

var defaultConvertConfig = &ConvertConfig{
	Concurrency:      0,
	ChunkSize:        20,
	QueueSize:        20,
	Compression:      "zstd",
	ChunkBytes:       "4MiB",
	TrajectoryPoints: 45,
	Log:              defaultLogConfig(),
}

// ConvertConfig is the configuration of the convert command.
type ConvertConfig struct {
	Input  string `toml:"input" json:"input"`
	Output string `toml:"output" json:"output"`
	// StartNs and EndNs limit the converted records, nil means unbounded.
	StartNs *int64 `toml:"start-ns" json:"start-ns"`
	EndNs   *int64 `toml:"end-ns" json:"end-ns"`

	// Concurrency is the number of transform workers, 0 means all CPUs.
	Concurrency int `toml:"concurrency" json:"concurrency"`
	ChunkSize   int `toml:"chunk-size" json:"chunk-size"`
	QueueSize   int `toml:"queue-size" json:"queue-size"`

	// Compression of the output chunks: zstd, lz4 or none.
	Compression string `toml:"compression" json:"compression"`
	// ChunkBytes is the human readable size of an output chunk, like 4MiB.
	ChunkBytes string `toml:"chunk-bytes" json:"chunk-bytes"`

	TrajectoryPoints int  `toml:"trajectory-points" json:"trajectory-points"`
	SplitBody        bool `toml:"split-body" json:"split-body"`

	// StatusAddr exposes the metrics over http when set.
	StatusAddr string `toml:"status-addr" json:"status-addr"`

	Log *logutil.Config `toml:"log" json:"log"`

	chunkBytes int64
}

// GetDefaultConvertConfig returns the default convert config.
func GetDefaultConvertConfig() *ConvertConfig {
	c := *defaultConvertConfig
	logCfg := *defaultConvertConfig.Log
	c.Log = &logCfg
	return &c
}

// ValidateAndAdjust validates and adjusts the convert config.
func (c *ConvertConfig) ValidateAndAdjust() error {
	if c.Input == "" {
		return invalid("input is empty")
	}
	if err := checkMCAPFile(c.Input); err != nil {
		return err
	}
	if c.Output != "" && !strings.HasSuffix(c.Output, MCAPExt) {
		return invalid("output %s must end with %s", c.Output, MCAPExt)
	}
	if c.StartNs != nil && c.EndNs != nil && *c.StartNs > *c.EndNs {
		return invalid("start-ns %d is after end-ns %d", *c.StartNs, *c.EndNs)
	}
	if c.Concurrency < 0 {
		return invalid("concurrency %d is negative", c.Concurrency)
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultConvertConfig.ChunkSize
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultConvertConfig.QueueSize
	}
	if c.TrajectoryPoints <= 0 {
		c.TrajectoryPoints = defaultConvertConfig.TrajectoryPoints
	}

	c.Compression = strings.ToLower(c.Compression)
	switch c.Compression {
	case "":
		c.Compression = defaultConvertConfig.Compression
	case "zstd", "lz4", "none":
	default:
		return invalid("unsupported compression %s, use zstd, lz4 or none", c.Compression)
	}

	if c.ChunkBytes == "" {
		c.ChunkBytes = defaultConvertConfig.ChunkBytes
	}
	size, err := units.RAMInBytes(c.ChunkBytes)
	if err != nil {
		return invalid("chunk-bytes %s: %v", c.ChunkBytes, err)
	}
	if size <= 0 {
		return invalid("chunk-bytes %s must be positive", c.ChunkBytes)
	}
	c.chunkBytes = size

	if c.Log == nil {
		c.Log = defaultLogConfig()
	}
	c.Log.Adjust()
	return nil
}

// ChunkSizeBytes returns ChunkBytes in bytes. It is valid after
// ValidateAndAdjust.
func (c *ConvertConfig) ChunkSizeBytes() int64 {
	return c.chunkBytes
}

// Window returns the converted time range, unbounded sides as the int64
// limits.
func (c *ConvertConfig) Window() (start, end int64) {
	start, end = math.MinInt64, math.MaxInt64
	if c.StartNs != nil {
		start = *c.StartNs
	}
	if c.EndNs != nil {
		end = *c.EndNs
	}
	return start, end
}
