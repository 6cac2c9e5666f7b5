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

package errors

import (
	"context"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	t.Parallel()

	var (
		rfcErr  = errors.Normalize("test", errors.RFCCodeText("LWVIZ:ErrTest"))
		testErr = errors.New("test")
	)
	require.Nil(t, WrapError(rfcErr, nil))

	err := WrapError(rfcErr, testErr)
	require.NotNil(t, err)
	require.True(t, Is(err, rfcErr))
	require.False(t, Is(err, ErrSinkWrite))
	require.Contains(t, err.Error(), "LWVIZ:ErrTest")
	require.False(t, Is(nil, rfcErr))
	require.False(t, Is(testErr, rfcErr))
}

func TestIsRecordError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("test"), false},
		{context.Canceled, false},
		{ErrTransformFailed.GenWithStackByArgs("tf-tree", 10), true},
		{WrapError(ErrTransformPanic, errors.New("boom"), "tf-tree", "boom"), true},
		{ErrSourceRead.GenWithStackByArgs("pose"), true},
		{ErrSinkWrite.GenWithStackByArgs(), false},
		{ErrSchemaNotFound.GenWithStackByArgs("foxglove.Nope"), false},
	}
	for _, c := range cases {
		require.Equal(t, c.expected, IsRecordError(c.err), "%v", c.err)
		require.Equal(t, c.err != nil && !c.expected, IsFatal(c.err), "%v", c.err)
	}
}

func TestRFCCode(t *testing.T) {
	t.Parallel()

	code, ok := RFCCode(ErrSinkUnknownTopic.FastGenByArgs("/x"))
	require.True(t, ok)
	require.Equal(t, errors.RFCErrorCode("LWVIZ:ErrSinkUnknownTopic"), code)

	code, ok = RFCCode(errors.Annotate(ErrSinkWrite.GenWithStackByArgs(), "flush"))
	require.True(t, ok)
	require.Equal(t, errors.RFCErrorCode("LWVIZ:ErrSinkWrite"), code)

	_, ok = RFCCode(errors.New("plain"))
	require.False(t, ok)
}
