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

package util

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/lwviz/lwviz/pkg/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestProxyFields(t *testing.T) {
	revIndex := map[string]int{
		"http_proxy":  0,
		"https_proxy": 1,
		"no_proxy":    2,
	}
	envs := []string{"http_proxy", "https_proxy", "no_proxy"}
	envPreset := []string{"http://127.0.0.1:8080", "https://127.0.0.1:8443", "localhost,127.0.0.1"}

	// Exhaust all combinations of those environment variables' selection.
	// Each bit of the mask decided whether this index of `envs` would be set.
	for mask := 0; mask <= 0b111; mask++ {
		for i, env := range envs {
			if (1<<i)&mask != 0 {
				t.Setenv(env, envPreset[i])
			} else {
				t.Setenv(env, "")
			}
		}

		for _, field := range findProxyFields() {
			idx, ok := revIndex[field.Key]
			require.True(t, ok)
			require.NotEqual(t, 0, (1<<idx)&mask)
			require.Equal(t, envPreset[idx], field.String)
		}
	}
}

func TestStrictDecodeValidFile(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "convert.toml")
	configContent := `
input = "/data/session.mcap"
output = "/data/out.mcap"
start-ns = 1700000000000000000
concurrency = 4
chunk-size = 50
compression = "lz4"
chunk-bytes = "8MiB"
split-body = true

[log]
level = "warn"
file = "/tmp/lwviz.log"
max-size = 200
max-days = 1
max-backups = 1
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	conf := config.GetDefaultConvertConfig()
	require.NoError(t, StrictDecodeFile(configPath, "convert", conf))
	require.Equal(t, "/data/session.mcap", conf.Input)
	require.Equal(t, int64(1700000000000000000), *conf.StartNs)
	require.Nil(t, conf.EndNs)
	require.Equal(t, 4, conf.Concurrency)
	require.Equal(t, "8MiB", conf.ChunkBytes)
	require.True(t, conf.SplitBody)
	require.Equal(t, 200, conf.Log.FileMaxSize)
	// untouched keys keep their defaults
	require.Equal(t, 20, conf.QueueSize)
	require.Equal(t, 45, conf.TrajectoryPoints)
}

func TestStrictDecodeInvalidFile(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "serve.toml")
	configContent := `
unknown = "128.0.0.1:1234"
port = 8080

[log.unkown]
max-size = 200
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	conf := config.GetDefaultServeConfig()
	err := StrictDecodeFile(configPath, "serve", conf)
	require.ErrorContains(t, err, "contained unknown configuration options")
	require.ErrorContains(t, err, "unknown")

	conf = config.GetDefaultServeConfig()
	require.NoError(t, StrictDecodeFile(configPath, "serve", conf, "unknown", "log"))
	require.Equal(t, 8080, conf.Port)
}

func TestJSONPrint(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, JSONPrint(cmd, map[string]int{"port": 12312}))
	require.Equal(t, "{\n  \"port\": 12312\n}\n", out.String())
}
