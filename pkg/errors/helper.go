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
	stderrors "errors"

	"github.com/pingcap/errors"
)

// WrapError generates a new error based on given `*errors.Error`, wraps the err
// as cause error.
// If given `err` is nil, returns a nil error, which a the different behavior
// against `Wrap` function in pingcap/errors.
func WrapError(rfcError *errors.Error, err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return rfcError.Wrap(err).GenWithStackByCause(args...)
}

// Is reports whether err was generated from the target normalized error,
// either directly or through WrapError.
func Is(err error, target *errors.Error) bool {
	e := findRFCError(err)
	return e != nil && e.RFCCode() == target.RFCCode()
}

// findRFCError returns the outermost normalized error in the chain of err.
func findRFCError(err error) *errors.Error {
	type causer interface {
		Cause() error
	}
	for err != nil {
		if e, ok := err.(*errors.Error); ok {
			return e
		}
		if c, ok := err.(causer); ok && c.Cause() != nil {
			err = c.Cause()
			continue
		}
		err = stderrors.Unwrap(err)
	}
	return nil
}

// recordErrors are the errors confined to a single record or a single source.
// They are logged and skipped, the run goes on.
var recordErrors = []*errors.Error{
	ErrTransformFailed,
	ErrTransformPanic,
	ErrPayloadType,
	ErrPayloadEncode,
	ErrPayloadDecode,
	ErrSourceRead,
}

// IsRecordError returns true if the error only affects one record or source.
func IsRecordError(err error) bool {
	e := findRFCError(err)
	if e == nil {
		return false
	}
	for _, target := range recordErrors {
		if e.RFCCode() == target.RFCCode() {
			return true
		}
	}
	return false
}

// IsFatal returns true if err is not confined to one record or source.
func IsFatal(err error) bool {
	return err != nil && !IsRecordError(err)
}

// RFCCode returns a RFCCode for an error
func RFCCode(err error) (errors.RFCErrorCode, bool) {
	if e := findRFCError(err); e != nil {
		return e.RFCCode(), true
	}
	return "", false
}
