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
	"fmt"
	"os"
	"path/filepath"

	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/pkg/logutil"
)

const (
	// MCAPExt is the extension of every input and output file.
	MCAPExt = ".mcap"

	defaultLogLevel = "info"
)

func defaultLogConfig() *logutil.Config {
	return &logutil.Config{
		Level:          defaultLogLevel,
		FileMaxSize:    300,
		FileMaxDays:    0,
		FileMaxBackups: 0,
	}
}

// checkMCAPFile returns an error unless path is an existing .mcap file.
func checkMCAPFile(path string) error {
	if filepath.Ext(path) != MCAPExt {
		return cerror.ErrInvalidConfig.GenWithStackByArgs(
			fmt.Sprintf("unsupported file type %q of %s, only %s files are supported",
				filepath.Ext(path), path, MCAPExt))
	}
	info, err := os.Stat(path)
	if err != nil {
		return cerror.WrapError(cerror.ErrInvalidConfig, err, "file "+path+" not found")
	}
	if info.IsDir() {
		return cerror.ErrInvalidConfig.GenWithStackByArgs(path + " is a directory")
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return cerror.ErrInvalidConfig.GenWithStackByArgs(fmt.Sprintf(format, args...))
}
