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

package sink

import (
	"context"

	"github.com/lwviz/lwviz/viz/model"
	"github.com/lwviz/lwviz/viz/schema"
)

// Sink is the serial consumer of the pipeline results. Write is called from
// a single goroutine, in result order.
type Sink interface {
	// SetSchemaTable hands the output topics and their schemas to the sink.
	// It is called before Open.
	SetSchemaTable(table map[string]schema.Schema)
	Open(ctx context.Context) error
	Write(result model.Result) error
	// Close flushes and releases the sink. It is safe to call Close more
	// than once, and without a successful Open.
	Close() error
}
