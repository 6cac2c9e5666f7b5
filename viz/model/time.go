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

package model

const nanosPerSecond = 1_000_000_000

// SplitNanos splits a nanosecond timestamp into seconds and the nanosecond
// remainder. The remainder is always in [0, 1e9).
func SplitNanos(ns int64) (sec int64, nsec int32) {
	sec = ns / nanosPerSecond
	rem := ns % nanosPerSecond
	if rem < 0 {
		sec--
		rem += nanosPerSecond
	}
	return sec, int32(rem)
}

// JoinNanos is the inverse of SplitNanos.
func JoinNanos(sec int64, nsec int32) int64 {
	return sec*nanosPerSecond + int64(nsec)
}

// MillisToNanos converts unix milliseconds to nanoseconds.
func MillisToNanos(ms int64) int64 {
	return ms * 1_000_000
}

// SecondsToNanos converts fractional seconds to nanoseconds.
func SecondsToNanos(sec float64) int64 {
	return int64(sec * nanosPerSecond)
}
