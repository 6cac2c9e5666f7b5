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
	"github.com/pingcap/errors"
)

// errors
var (
	// config related errors
	ErrInvalidConfig = errors.Normalize(
		"invalid config: %s",
		errors.RFCCodeText("LWVIZ:ErrInvalidConfig"),
	)
	ErrInvalidServerOption = errors.Normalize(
		"invalid server option: %s",
		errors.RFCCodeText("LWVIZ:ErrInvalidServerOption"),
	)

	// schema related errors
	ErrSchemaNotFound = errors.Normalize(
		"schema %s not found",
		errors.RFCCodeText("LWVIZ:ErrSchemaNotFound"),
	)
	ErrSchemaBuild = errors.Normalize(
		"build schema %s failed",
		errors.RFCCodeText("LWVIZ:ErrSchemaBuild"),
	)
	ErrSchemaField = errors.Normalize(
		"message %s has no field %s",
		errors.RFCCodeText("LWVIZ:ErrSchemaField"),
	)
	ErrSchemaValue = errors.Normalize(
		"invalid value %v for field %s",
		errors.RFCCodeText("LWVIZ:ErrSchemaValue"),
	)

	// transform related errors
	ErrCorrelatedTopicMissing = errors.Normalize(
		"transform on topic %s listens to %s, but no source produces it",
		errors.RFCCodeText("LWVIZ:ErrCorrelatedTopicMissing"),
	)
	ErrTransformFailed = errors.Normalize(
		"transform on topic %s failed at ts %d",
		errors.RFCCodeText("LWVIZ:ErrTransformFailed"),
	)
	ErrTransformPanic = errors.Normalize(
		"transform on topic %s panicked: %v",
		errors.RFCCodeText("LWVIZ:ErrTransformPanic"),
	)
	ErrTransformInvalidParam = errors.Normalize(
		"invalid transform param %s=%s",
		errors.RFCCodeText("LWVIZ:ErrTransformInvalidParam"),
	)
	ErrPayloadType = errors.Normalize(
		"unexpected payload type %T on topic %s",
		errors.RFCCodeText("LWVIZ:ErrPayloadType"),
	)
	ErrPayloadEncode = errors.Normalize(
		"encode payload for topic %s failed",
		errors.RFCCodeText("LWVIZ:ErrPayloadEncode"),
	)

	// source related errors
	ErrSourceSetup = errors.Normalize(
		"setup source %s failed",
		errors.RFCCodeText("LWVIZ:ErrSourceSetup"),
	)
	ErrSourceRead = errors.Normalize(
		"read source %s failed",
		errors.RFCCodeText("LWVIZ:ErrSourceRead"),
	)
	ErrSourceNotSetup = errors.Normalize(
		"source %s is not setup",
		errors.RFCCodeText("LWVIZ:ErrSourceNotSetup"),
	)
	ErrPayloadDecode = errors.Normalize(
		"decode message on channel %s failed",
		errors.RFCCodeText("LWVIZ:ErrPayloadDecode"),
	)
	ErrUnsupportedEncoding = errors.Normalize(
		"unsupported message encoding %s on channel %s",
		errors.RFCCodeText("LWVIZ:ErrUnsupportedEncoding"),
	)

	// sink related errors
	ErrSinkNotReady = errors.Normalize(
		"sink is not ready: %s",
		errors.RFCCodeText("LWVIZ:ErrSinkNotReady"),
	)
	ErrSinkUnknownTopic = errors.Normalize(
		"sink has no channel for topic %s",
		errors.RFCCodeText("LWVIZ:ErrSinkUnknownTopic"),
	)
	ErrSinkWrite = errors.Normalize(
		"sink write failed",
		errors.RFCCodeText("LWVIZ:ErrSinkWrite"),
	)
	ErrSinkClosed = errors.Normalize(
		"sink is closed",
		errors.RFCCodeText("LWVIZ:ErrSinkClosed"),
	)

	// pipeline related errors
	ErrPipelineClosed = errors.Normalize(
		"pipeline is closed",
		errors.RFCCodeText("LWVIZ:ErrPipelineClosed"),
	)
	ErrPipelineNoSource = errors.Normalize(
		"pipeline has no source",
		errors.RFCCodeText("LWVIZ:ErrPipelineNoSource"),
	)

	// server related errors
	ErrServeFile = errors.Normalize(
		"can not serve file %s: %s",
		errors.RFCCodeText("LWVIZ:ErrServeFile"),
	)
	ErrServeNoPort = errors.Normalize(
		"no available port near %d after %d attempts",
		errors.RFCCodeText("LWVIZ:ErrServeNoPort"),
	)
)
