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
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	cerror "github.com/lwviz/lwviz/pkg/errors"
	"github.com/lwviz/lwviz/pkg/logutil"
	"github.com/lwviz/lwviz/pkg/version"
	"github.com/lwviz/lwviz/viz/pipeline"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const httpConnectionTimeout = 10 * time.Second

// statusServer exposes the conversion metrics over http.
type statusServer struct {
	addr     string
	registry *prometheus.Registry
	router   *gin.Engine
}

func newStatusServer(addr string) *statusServer {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipeline.InitMetrics(registry)

	// discard gin log output
	gin.DefaultWriter = io.Discard
	router := gin.New()
	// add gin.Recovery() to handle unexpected panic
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.GetInfo())
	})
	router.POST("/log", setLogLevel)
	return &statusServer{addr: addr, registry: registry, router: router}
}

type logLevelReq struct {
	Level string `json:"log_level"`
}

// setLogLevel changes the log level of the running conversion.
func setLogLevel(c *gin.Context) {
	var req logLevelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := logutil.SetLogLevel(req.Level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fail to change log level: " + req.Level})
		return
	}
	log.Warn("log level changed", zap.String("level", req.Level))
	c.Status(http.StatusOK)
}

// run serves until ctx is canceled or done is closed.
func (s *statusServer) run(ctx context.Context, done <-chan struct{}) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return cerror.WrapError(cerror.ErrInvalidServerOption, err, "status-addr "+s.addr)
	}
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  httpConnectionTimeout,
		WriteTimeout: httpConnectionTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("status server is running", zap.String("addr", lis.Addr().String()))
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return errors.Trace(err)
	case <-ctx.Done():
	case <-done:
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("status server shutdown", zap.Error(err))
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return errors.Trace(err)
	}
	return nil
}
