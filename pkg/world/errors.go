// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package world

import (
	"errors"
	"fmt"
)

// Code identifies an error category surfaced at the RPC boundary.
type Code string

const (
	CodeValidation    Code = "validation_error"
	CodeNotFound      Code = "not_found"
	CodeCrossWorld    Code = "cross_world"
	CodeNotHere       Code = "not_here"
	CodeNotHolding    Code = "not_holding"
	CodeNoArea        Code = "no_area"
	CodeSlotOccupied  Code = "slot_occupied"
	CodeBothHandsFull Code = "both_hands_full"
	CodeAlreadyOwned  Code = "already_owned"
	CodeTimeout       Code = "timeout"
	CodeConflict      Code = "conflict"
)

// rpcCodes maps error categories to stable positive numeric codes for the
// wire protocol.
var rpcCodes = map[Code]int{
	CodeValidation:    1000,
	CodeNotFound:      1001,
	CodeCrossWorld:    1002,
	CodeNotHere:       1003,
	CodeNotHolding:    1004,
	CodeNoArea:        1005,
	CodeSlotOccupied:  1006,
	CodeBothHandsFull: 1007,
	CodeAlreadyOwned:  1008,
	CodeTimeout:       1009,
	CodeConflict:      1010,
}

// Error is a typed failure carrying a stable category code. Two Errors
// compare equal under errors.Is when their codes match.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches against another *Error by code, so sentinel checks like
// errors.Is(err, world.ErrNotFound) work regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrValidation    = &Error{Code: CodeValidation}
	ErrNotFound      = &Error{Code: CodeNotFound}
	ErrCrossWorld    = &Error{Code: CodeCrossWorld}
	ErrNotHere       = &Error{Code: CodeNotHere}
	ErrNotHolding    = &Error{Code: CodeNotHolding}
	ErrNoArea        = &Error{Code: CodeNoArea}
	ErrSlotOccupied  = &Error{Code: CodeSlotOccupied}
	ErrBothHandsFull = &Error{Code: CodeBothHandsFull}
	ErrAlreadyOwned  = &Error{Code: CodeAlreadyOwned}
	ErrTimeout       = &Error{Code: CodeTimeout}
	ErrConflict      = &Error{Code: CodeConflict}
)

// Errorf builds a typed error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not_found error.
func NotFoundf(format string, args ...any) *Error {
	return Errorf(CodeNotFound, format, args...)
}

// Validationf builds a validation_error.
func Validationf(format string, args ...any) *Error {
	return Errorf(CodeValidation, format, args...)
}

// CodeOf extracts the category code from an error chain. Returns an empty
// code for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// RPCCode returns the stable numeric code for the wire protocol.
// Untyped errors map to 1999 (internal).
func RPCCode(err error) int {
	if code, ok := rpcCodes[CodeOf(err)]; ok {
		return code
	}
	return 1999
}
