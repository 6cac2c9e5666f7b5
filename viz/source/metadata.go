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

package source

import (
	"context"
	"strconv"

	"github.com/lwviz/lwviz/viz/model"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// TopicSessionMetadata carries the description of the recorded session.
const TopicSessionMetadata = "/session/metadata"

// Keys of the session metadata.
const (
	MetaTaskID                 = "task_id"
	MetaEnvironmentID          = "environment_id"
	MetaSessionUUID            = "session_uuid"
	MetaOperatorID             = "operator_id"
	MetaInstruction            = "instruction"
	MetaEnvironmentDescription = "environment_description"
	MetaTaskDescription        = "task_description"
	MetaStartTime              = "start_time_unix_ns"
	MetaEndTime                = "end_time_unix_ns"
)

type sessionMsg struct {
	TaskInfo *struct {
		TaskName               string `json:"task_name"`
		EnvironmentID          string `json:"environment_id"`
		EpisodeUUID            string `json:"episode_uuid"`
		TaskDescription        string `json:"task_description"`
		EnvironmentDescription string `json:"environment_description"`
	} `json:"task_info"`
	Operator *struct {
		OperatorID string `json:"operator_id"`
	} `json:"operator"`
	Devices []struct {
		UnixStartTimeMs int64Value `json:"unix_start_time_ms"`
		UnixEndTimeMs   int64Value `json:"unix_end_time_ms"`
	} `json:"devices"`
}

var errStopScan = errors.New("stop scan")

// ReadSessionMetadata reads the first session metadata message of path as
// file level metadata. The session spans from the earliest device start to
// the latest device end, or is the message time if no device knows it.
// A file without session metadata yields nil.
func ReadSessionMetadata(ctx context.Context, path string) (map[string]string, error) {
	var (
		session *sessionMsg
		ts      int64
	)
	dec := newDecoder()
	err := scanTopics(ctx, path, []string{TopicSessionMetadata}, func(m message) error {
		msg := new(sessionMsg)
		if err := dec.decode(m, msg); err != nil {
			return err
		}
		session, ts = msg, m.logTime()
		return errStopScan
	})
	if err != nil && errors.Cause(err) != errStopScan {
		return nil, err
	}
	if session == nil {
		log.Warn("no session metadata found, skip file level metadata", zap.String("path", path))
		return nil, nil
	}

	var start, end int64
	for _, d := range session.Devices {
		if s := int64(d.UnixStartTimeMs); s != 0 && (start == 0 || s < start) {
			start = s
		}
		if e := int64(d.UnixEndTimeMs); e != 0 && e > end {
			end = e
		}
	}
	startNs, endNs := ts, ts
	if start != 0 {
		startNs = model.MillisToNanos(start)
	}
	if end != 0 {
		endNs = model.MillisToNanos(end)
	}

	meta := map[string]string{
		MetaTaskID:                 "",
		MetaEnvironmentID:          "",
		MetaSessionUUID:            "",
		MetaOperatorID:             "",
		MetaInstruction:            "",
		MetaEnvironmentDescription: "",
		MetaTaskDescription:        "",
		MetaStartTime:              strconv.FormatInt(startNs, 10),
		MetaEndTime:                strconv.FormatInt(endNs, 10),
	}
	if t := session.TaskInfo; t != nil {
		meta[MetaTaskID] = t.TaskName
		meta[MetaEnvironmentID] = t.EnvironmentID
		meta[MetaSessionUUID] = t.EpisodeUUID
		meta[MetaInstruction] = t.TaskDescription
		meta[MetaEnvironmentDescription] = t.EnvironmentDescription
		meta[MetaTaskDescription] = t.TaskDescription
	}
	if session.Operator != nil {
		meta[MetaOperatorID] = session.Operator.OperatorID
	}
	return meta, nil
}
