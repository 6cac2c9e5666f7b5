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

package server

import (
	"context"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lwviz/lwviz/pkg/config"
	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *config.ServeConfig {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "session.mcap")
	vis := filepath.Join(dir, "output", "session_vis.mcap")
	require.NoError(t, os.WriteFile(mainFile, []byte("0123456789"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(vis), 0o755))
	require.NoError(t, os.WriteFile(vis, []byte("vis"), 0o644))

	cfg := config.GetDefaultServeConfig()
	cfg.File = mainFile
	cfg.AdditionalFiles = []string{vis}
	cfg.Host = "127.0.0.1"
	cfg.OpenBrowser = false
	return cfg
}

func TestNewValidatesFiles(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t)
	cfg.AdditionalFiles = append(cfg.AdditionalFiles, filepath.Join(t.TempDir(), "missing.mcap"))
	_, err := New(cfg)
	require.True(t, cerror.Is(err, cerror.ErrServeFile))

	cfg = newTestConfig(t)
	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, nil, 0o644))
	cfg.File = txt
	_, err = New(cfg)
	require.True(t, cerror.Is(err, cerror.ErrServeFile))

	cfg = newTestConfig(t)
	other := filepath.Join(t.TempDir(), "session_vis.mcap")
	require.NoError(t, os.WriteFile(other, nil, 0o644))
	cfg.AdditionalFiles = append(cfg.AdditionalFiles, other)
	_, err = New(cfg)
	require.True(t, cerror.Is(err, cerror.ErrServeFile))
}

func TestHandler(t *testing.T) {
	t.Parallel()

	s, err := New(newTestConfig(t))
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/session.mcap")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "0123456789", string(body))
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "x-requested-with", resp.Header.Get("Access-Control-Allow-Headers"))
	require.Equal(t, "POST, GET, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	require.Equal(t, "Accept-Ranges", resp.Header.Get("Access-Control-Expose-Headers"))
	require.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/session.mcap", nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=2-4")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	require.Equal(t, "234", string(body))

	resp, err = http.Get(srv.URL + "/session_vis.mcap")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err = http.NewRequest(http.MethodOptions, srv.URL+"/session.mcap", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(srv.URL + "/other.mcap")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestViewerURL(t *testing.T) {
	t.Parallel()

	s, err := New(newTestConfig(t))
	require.NoError(t, err)
	urls := s.FileURLs("0.0.0.0", 12312)
	require.Equal(t, []string{
		"http://127.0.0.1:12312/session.mcap",
		"http://127.0.0.1:12312/session_vis.mcap",
	}, urls)
	require.Equal(t, []string{"http://10.0.0.2:80/session.mcap", "http://10.0.0.2:80/session_vis.mcap"},
		s.FileURLs("10.0.0.2", 80))

	require.Equal(t,
		"https://foxviz.lightwheel.net/?ds=mcap-remote-file&ds.url="+
			"http%3A%2F%2F127.0.0.1%3A12312%2Fsession.mcap%2C"+
			"http%3A%2F%2F127.0.0.1%3A12312%2Fsession_vis.mcap",
		ViewerURL(config.DefaultViewerURL, urls, -1))
	require.Equal(t,
		"https://viewer.local/?v=2&ds=mcap-remote-file&ds.url=http%3A%2F%2Fh%2Fa%20b.mcap"+
			"&time=2023-11-14T22%3A13%3A20.500000Z",
		ViewerURL("https://viewer.local/?v=2", []string{"http://h/a b.mcap"}, 1700000000.5))
}

func TestCandidatePorts(t *testing.T) {
	t.Parallel()

	rnd := rand.New(rand.NewSource(1))
	ports := CandidatePorts(12312, 10, rnd)
	require.Len(t, ports, 10)
	require.Equal(t, []int{12312, 12313, 12314, 12315, 12316}, ports[:5])
	for _, p := range ports[5:] {
		require.GreaterOrEqual(t, p, 12312-20)
		require.LessOrEqual(t, p, 12312+20)
	}

	require.Equal(t, []int{8000, 8001, 8002}, CandidatePorts(8000, 3, rnd))
	for _, p := range CandidatePorts(2, 20, rnd) {
		require.GreaterOrEqual(t, p, 1)
	}
}

func TestListen(t *testing.T) {
	t.Parallel()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	busyPort := busy.Addr().(*net.TCPAddr).Port

	cfg := newTestConfig(t)
	cfg.Port = busyPort
	cfg.PortAttempts = 1
	s, err := New(cfg)
	require.NoError(t, err)
	_, err = s.Listen(context.Background())
	require.True(t, cerror.Is(err, cerror.ErrServeNoPort))

	cfg.PortAttempts = 10
	lis, err := s.Listen(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, busyPort, lis.Addr().(*net.TCPAddr).Port)
	require.NoError(t, lis.Close())
}

func TestRun(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t)
	cfg.OpenBrowser = true
	cfg.Port = 20000 + rand.Intn(20000)
	s, err := New(cfg)
	require.NoError(t, err)
	opened := make(chan string, 1)
	s.open = func(link string) error {
		opened <- link
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	var viewer string
	select {
	case viewer = <-opened:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	}
	require.Contains(t, viewer, "ds=mcap-remote-file")

	u, err := url.Parse(viewer)
	require.NoError(t, err)
	files := strings.Split(u.Query().Get("ds.url"), ",")
	require.Len(t, files, 2)
	resp, err := http.Get(files[0])
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "0123456789", string(body))

	cancel()
	require.NoError(t, <-done)
}
