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
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lwviz/lwviz/pkg/config"
	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/pkg/leakutil"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newInput(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "session.mcap")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func TestDefaultCfg(t *testing.T) {
	cmd := new(cobra.Command)
	o := newOptions()
	o.addFlags(cmd)

	input := newInput(t)
	require.NoError(t, cmd.ParseFlags([]string{"--input", input}))
	require.NoError(t, o.complete(cmd))
	require.NoError(t, o.validate())

	defaultCfg := config.GetDefaultConvertConfig()
	defaultCfg.Input = input
	require.NoError(t, defaultCfg.ValidateAndAdjust())
	require.Equal(t, defaultCfg, o.convertConfig)
	require.Nil(t, o.convertConfig.StartNs)
	require.Nil(t, o.convertConfig.EndNs)
}

func TestParseCfg(t *testing.T) {
	cmd := new(cobra.Command)
	o := newOptions()
	o.addFlags(cmd)

	input := newInput(t)
	output := filepath.Join(t.TempDir(), "vis.mcap")
	require.NoError(t, cmd.ParseFlags([]string{
		"-i", input,
		"-o", output,
		"--start-ns", "100",
		"--end-ns", "200",
		"--concurrency", "3",
		"--chunk-size", "7",
		"--queue-size", "9",
		"--compression", "lz4",
		"--chunk-bytes", "1MiB",
		"--trajectory-points", "10",
		"--split-body",
		"--status-addr", "127.0.0.1:0",
		"--log-file", "/tmp/lwviz.log",
		"--log-level", "debug",
	}))
	require.NoError(t, o.complete(cmd))
	require.NoError(t, o.validate())

	conf := o.convertConfig
	require.Equal(t, input, conf.Input)
	require.Equal(t, output, conf.Output)
	require.Equal(t, int64(100), *conf.StartNs)
	require.Equal(t, int64(200), *conf.EndNs)
	require.Equal(t, 3, conf.Concurrency)
	require.Equal(t, 7, conf.ChunkSize)
	require.Equal(t, 9, conf.QueueSize)
	require.Equal(t, "lz4", conf.Compression)
	require.Equal(t, int64(1024*1024), conf.ChunkSizeBytes())
	require.Equal(t, 10, conf.TrajectoryPoints)
	require.True(t, conf.SplitBody)
	require.Equal(t, "127.0.0.1:0", conf.StatusAddr)
	require.Equal(t, "/tmp/lwviz.log", conf.Log.File)
	require.Equal(t, "debug", conf.Log.Level)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	input := newInput(t)
	configPath := filepath.Join(t.TempDir(), "convert.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
input = "`+input+`"
compression = "none"
queue-size = 64
end-ns = 900

[log]
level = "warn"
`), 0o644))

	cmd := new(cobra.Command)
	o := newOptions()
	o.addFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--config", configPath, "--queue-size", "8", "--start-ns", "-1"}))
	require.NoError(t, o.complete(cmd))
	require.NoError(t, o.validate())

	conf := o.convertConfig
	require.Equal(t, "none", conf.Compression)
	require.Equal(t, 8, conf.QueueSize)
	require.Nil(t, conf.StartNs)
	require.Equal(t, int64(900), *conf.EndNs)
	require.Equal(t, "warn", conf.Log.Level)
}

func TestInvalidCfg(t *testing.T) {
	cmd := new(cobra.Command)
	o := newOptions()
	o.addFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--input", newInput(t), "--start-ns", "10", "--end-ns", "5"}))
	require.NoError(t, o.complete(cmd))
	require.True(t, cerror.Is(o.validate(), cerror.ErrInvalidConfig))

	configPath := filepath.Join(t.TempDir(), "convert.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("inptu = \"x.mcap\"\n"), 0o644))
	cmd = new(cobra.Command)
	o = newOptions()
	o.addFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--config", configPath}))
	require.ErrorContains(t, o.complete(cmd), "unknown configuration options")

	cmd = new(cobra.Command)
	o = newOptions()
	o.addFlags(cmd)
	require.Regexp(t, ".*unknown flag: --inptu.*", cmd.ParseFlags([]string{"--inptu=x"}).Error())
}

func TestStatusServer(t *testing.T) {
	defer leakutil.VerifyNone(t)
	s := newStatusServer("127.0.0.1:0")
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	defer http.DefaultClient.CloseIdleConnections()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "go_goroutines")

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Contains(t, string(body), "release_version")

	orig := log.GetLevel()
	defer log.SetLevel(orig)
	resp, err = http.Post(srv.URL+"/log", "application/json", strings.NewReader(`{"log_level":"error"}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, zapcore.ErrorLevel, log.GetLevel())

	resp, err = http.Post(srv.URL+"/log", "application/json", strings.NewReader(`{"log_level":"loud"}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	done := make(chan struct{})
	close(done)
	require.NoError(t, s.run(context.Background(), done))

	err = newStatusServer("256.0.0.1:1").run(context.Background(), done)
	require.True(t, cerror.Is(err, cerror.ErrInvalidServerOption))
}
