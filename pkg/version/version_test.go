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

package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemoveVAndHash(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, out string
	}{
		{"", ""},
		{"v0.2.0", "0.2.0"},
		{"v0.2.0-dirty", "0.2.0"},
		{"v0.2.0-rc.1-12-g1a2b3c4", "0.2.0-rc.1"},
		{"v0.2.0-3-g1a2b3c4d-dev", "0.2.0"},
		{"None", "None"},
	}
	for _, c := range cases {
		require.Equal(t, c.out, removeVAndHash(c.in), c.in)
	}
}

func TestReleaseSemverAndLibrary(t *testing.T) {
	orig := ReleaseVersion
	defer func() { ReleaseVersion = orig }()

	ReleaseVersion = "None"
	require.Equal(t, "", ReleaseSemver())
	require.Equal(t, "lwviz", Library())

	ReleaseVersion = "v1.3.0-4-gabcdef01"
	require.Equal(t, "1.3.0", ReleaseSemver())
	require.Equal(t, "lwviz/1.3.0", Library())

	require.Contains(t, GetRawInfo(), "Release Version: v1.3.0-4-gabcdef01\n")
	require.Equal(t, ReleaseVersion, GetInfo().ReleaseVersion)
}
