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

package logutil

import (
	"context"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

type ctxLogKeyType struct{}

var ctxLogKey = ctxLogKeyType{}

// FromContext returns the logger carried by ctx, or the global logger.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return log.L()
	}
	if lg, ok := ctx.Value(ctxLogKey).(*zap.Logger); ok {
		return lg
	}
	return log.L()
}

// NewContextWithLogger returns a copy of ctx carrying the given logger.
func NewContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxLogKey, logger)
}

// WithComponent returns a child of the context logger tagged with a component name.
func WithComponent(ctx context.Context, component string) *zap.Logger {
	return FromContext(ctx).With(zap.String("component", component))
}
