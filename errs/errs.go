// Copyright (c) 2026 The Incbuild Authors
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

// Package errs defines the error kinds the engine distinguishes, per
// spec.md §7: callback contract violations, persisted-format problems,
// user/IDE cancellation, and underlying compiler failures. Each kind is
// distinguished with errors.As, not string matching; CompilerFailure also
// wraps its cause.
package errs

import "fmt"

// ContractViolation reports a broken usage contract or an inconsistent
// Analysis: e.g. GetOnce called twice on a callback builder, a class-file
// manager used after Complete, or a class named by a relation with no API
// entry.
type ContractViolation struct {
	Msg string
}

func (e *ContractViolation) Error() string { return "contract violation: " + e.Msg }

// FormatError reports that a persisted Analysis file does not match the
// format this engine writes (e.g. the wrong number of legacy relations).
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return "format error: " + e.Msg }

// Cancellation reports that a cycle was cancelled before it completed,
// e.g. by an IDE build cancellation request.
type Cancellation struct {
	Reason string
}

func (e *Cancellation) Error() string {
	if e.Reason == "" {
		return "cancelled"
	}
	return "cancelled: " + e.Reason
}

// CompilerFailure wraps an error returned by the underlying compile
// function itself, as opposed to a failure of the incremental engine.
type CompilerFailure struct {
	Cause error
}

func (e *CompilerFailure) Error() string { return fmt.Sprintf("compiler failure: %v", e.Cause) }

func (e *CompilerFailure) Unwrap() error { return e.Cause }

// NewContractViolation constructs a ContractViolation with a formatted
// message.
func NewContractViolation(format string, args ...any) error {
	return &ContractViolation{Msg: fmt.Sprintf(format, args...)}
}

// NewFormatError constructs a FormatError with a formatted message.
func NewFormatError(format string, args ...any) error {
	return &FormatError{Msg: fmt.Sprintf(format, args...)}
}
