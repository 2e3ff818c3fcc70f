// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines the typed worker error used across sqlworker.
// Every failure that can end a request carries a machine-readable Kind so the
// response emitter, the journal and the CLI can tell a rejected request apart
// from an unreachable database or an engine-level failure.
//
// The package supports wrapping underlying errors while maintaining error kind
// information. Handlers return *E values explicitly; nothing relies on panics
// for control flow.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// Validation indicates a missing or unknown subcommand or a missing required field.
	// Validation errors are raised before any database contact.
	Validation Kind = "validation"
	// UnknownDatabase indicates the logical database name has no configured entry.
	UnknownDatabase Kind = "unknown_database"
	// ConnectionFailure indicates a configured database could not be opened or reached.
	ConnectionFailure Kind = "connection_failure"
	// Translation indicates a column descriptor could not be turned into a column definition.
	Translation Kind = "translation"
	// OperationFailure indicates the database rejected the attempted DDL or DML.
	OperationFailure Kind = "operation_failure"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying engine or transport error.
func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Newf is New with a format string.
func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// MissingInput reports a required request parameter that was absent.
func MissingInput(field string) *E {
	return &E{Kind: Validation, Message: "Missing input " + field}
}

// KindOf returns the Kind of the first *E in err's chain.
// Errors that carry no kind are reported as OperationFailure.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return OperationFailure
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *E
	return stderrors.As(err, &e) && e.Kind == kind
}

// As is errors.As re-exported so callers importing this package under the
// name "errors" keep access to it.
func As(err error, target any) bool { return stderrors.As(err, target) }
