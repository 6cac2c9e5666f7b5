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

package pipeline

import (
	"context"

	"github.com/lwviz/lwviz/viz/model"
	"github.com/pingcap/errors"
)

// collect forwards the result of every future in submission order. It
// closes results once futures is closed and drained.
func collect(
	ctx context.Context,
	futures <-chan chan model.ResultBatch,
	results chan<- model.ResultBatch,
) error {
	defer close(results)
	for {
		var future chan model.ResultBatch
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case f, ok := <-futures:
			if !ok {
				return nil
			}
			future = f
		}

		// later batches may be done already, they wait for this one
		var rb model.ResultBatch
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case rb = <-future:
		}

		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case results <- rb:
		}
	}
}
