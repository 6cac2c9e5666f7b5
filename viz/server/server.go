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
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lwviz/lwviz/pkg/config"
	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/pkg/logutil"
	"github.com/pingcap/errors"
	"github.com/pkg/browser"
	"go.uber.org/zap"
)

const (
	dataSource = "mcap-remote-file"
	// consecutivePorts are tried before random ports near the configured one.
	consecutivePorts = 5
	timeLayout       = "2006-01-02T15:04:05.000000Z"
	shutdownTimeout  = 3 * time.Second
)

// Server serves MCAP files to the web viewer.
type Server struct {
	cfg *config.ServeConfig
	// files maps the served name to the absolute path
	files map[string]string
	names []string

	router *gin.Engine
	open   func(url string) error
	rnd    *rand.Rand
}

// New creates a Server for cfg.File and cfg.AdditionalFiles.
func New(cfg *config.ServeConfig) (*Server, error) {
	s := &Server{
		cfg:   cfg,
		files: make(map[string]string),
		open:  browser.OpenURL,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, f := range append([]string{cfg.File}, cfg.AdditionalFiles...) {
		abs, err := checkFile(f)
		if err != nil {
			return nil, err
		}
		name := filepath.Base(abs)
		if prev, ok := s.files[name]; ok && prev != abs {
			return nil, cerror.ErrServeFile.GenWithStackByArgs(abs, "name conflicts with "+prev)
		}
		if _, ok := s.files[name]; !ok {
			s.names = append(s.names, name)
		}
		s.files[name] = abs
	}
	s.router = s.newRouter()
	return s, nil
}

func checkFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", cerror.ErrServeFile.GenWithStackByArgs(path, err.Error())
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", cerror.ErrServeFile.GenWithStackByArgs(abs, "file not found")
	}
	if info.IsDir() {
		return "", cerror.ErrServeFile.GenWithStackByArgs(abs, "is a directory")
	}
	if filepath.Ext(abs) != config.MCAPExt {
		return "", cerror.ErrServeFile.GenWithStackByArgs(abs,
			fmt.Sprintf("unsupported file type %q, only %s files are supported", filepath.Ext(abs), config.MCAPExt))
	}
	return abs, nil
}

func (s *Server) newRouter() *gin.Engine {
	// discard gin log output
	gin.DefaultWriter = io.Discard
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logMiddleware())
	router.Use(corsMiddleware())
	router.GET("/:name", s.serveFile)
	router.HEAD("/:name", s.serveFile)
	router.OPTIONS("/:name", s.preflight)
	return router
}

// Handler returns the http handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) serveFile(c *gin.Context) {
	path, ok := s.files[c.Param("name")]
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	// http.ServeContent behind c.File answers range requests
	c.File(path)
}

func (s *Server) preflight(c *gin.Context) {
	if _, ok := s.files[c.Param("name")]; !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "x-requested-with")
		h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		h.Set("Access-Control-Expose-Headers", "Accept-Ranges")
		c.Next()
	}
}

func logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logutil.FromContext(c.Request.Context()).Debug("serve request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("range", c.GetHeader("Range")),
			zap.String("ip", c.ClientIP()),
			zap.Duration("duration", time.Since(start)))
	}
}

// CandidatePorts returns the ports tried for port: up to five consecutive
// ones, then random ones within 2*n of port.
func CandidatePorts(port, n int, rnd *rand.Rand) []int {
	ports := make([]int, 0, n)
	for i := 0; i < n && i < consecutivePorts; i++ {
		ports = append(ports, port+i)
	}
	for i := consecutivePorts; i < n; i++ {
		p := port + rnd.Intn(4*n+1) - 2*n
		if p < 1 {
			p = 1
		}
		ports = append(ports, p)
	}
	return ports
}

// Listen binds the first free candidate port of the configured one.
func (s *Server) Listen(ctx context.Context) (net.Listener, error) {
	lg := logutil.WithComponent(ctx, "serve")
	var lc net.ListenConfig
	for _, port := range CandidatePorts(s.cfg.Port, s.cfg.PortAttempts, s.rnd) {
		addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
		lis, err := lc.Listen(ctx, "tcp", addr)
		if err == nil {
			return lis, nil
		}
		if ctx.Err() != nil {
			return nil, errors.Trace(ctx.Err())
		}
		lg.Info("port in use, trying another", zap.Int("port", port), zap.Error(err))
	}
	return nil, cerror.ErrServeNoPort.GenWithStackByArgs(s.cfg.Port, s.cfg.PortAttempts)
}

// FileURLs returns the urls of the served files, the main file first.
func (s *Server) FileURLs(host string, port int) []string {
	host = publicHost(host)
	urls := make([]string, 0, len(s.names))
	for _, name := range s.names {
		u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, strconv.Itoa(port)), Path: "/" + name}
		urls = append(urls, u.String())
	}
	return urls
}

func publicHost(host string) string {
	if host == "0.0.0.0" || host == "localhost" || host == "" {
		return "127.0.0.1"
	}
	return host
}

// ViewerURL builds the viewer link opening fileURLs, positioned at
// startSec unless it is negative.
func ViewerURL(base string, fileURLs []string, startSec float64) string {
	var b strings.Builder
	b.WriteString(base)
	if strings.Contains(base, "?") {
		b.WriteString("&")
	} else {
		b.WriteString("?")
	}
	b.WriteString("ds=" + dataSource)
	b.WriteString("&ds.url=" + quote(strings.Join(fileURLs, ",")))
	if startSec >= 0 {
		sec := int64(startSec)
		nsec := int64((startSec - float64(sec)) * float64(time.Second))
		b.WriteString("&time=" + quote(time.Unix(sec, nsec).UTC().Format(timeLayout)))
	}
	return b.String()
}

// quote escapes every reserved character, spaces as %20.
func quote(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	lg := logutil.WithComponent(ctx, "serve")
	lis, err := s.Listen(ctx)
	if err != nil {
		return err
	}
	port := lis.Addr().(*net.TCPAddr).Port
	fileURLs := s.FileURLs(s.cfg.Host, port)
	viewer := ViewerURL(s.cfg.ViewerURL, fileURLs, s.cfg.StartSec)
	lg.Info("web server started",
		zap.String("addr", lis.Addr().String()), zap.Strings("files", fileURLs))
	lg.Info("if the browser does not open, please open this url", zap.String("url", viewer))
	if s.cfg.OpenBrowser {
		if err := s.open(viewer); err != nil {
			lg.Warn("could not open browser", zap.Error(err))
		}
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return errors.Trace(err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && serveErr != http.ErrServerClosed {
		err = serveErr
	}
	lg.Info("web server stopped")
	return errors.Trace(err)
}
