// Package apperr defines the small error taxonomy used across the fleet
// orchestrator, so the HTTP layer can map an error to a status code without
// each handler re-deriving that mapping ad hoc.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Tag classifies an error by the taxonomy in the error-handling design.
type Tag string

const (
	TagConfig        Tag = "config"         // invalid inputs at startup; fatal
	TagStore         Tag = "store"          // store unreachable, schema mismatch, commit failure
	TagSpawn         Tag = "spawn"          // agent subprocess could not start
	TagValidation    Tag = "validation"     // bad caller input (e.g. empty prompt)
	TagNotFound      Tag = "not_found"      // referenced entity does not exist
	TagAgentLogical  Tag = "agent_logical"  // is_error events in the agent stream
	TagWorkerCrash   Tag = "worker_crash"   // unexpected failure inside a worker loop
	TagSubscriber    Tag = "subscriber"     // broken event-bus fan-out sink
	TagInternal      Tag = "internal"       // anything else
)

// Error is an application error carrying a taxonomy tag alongside the
// wrapped cause, so call sites can both log structurally and answer HTTP
// requests with the right status code.
type Error struct {
	Tag        Tag
	Message    string
	Cause      error
	HTTPStatus int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(tag Tag, status int, msg string, cause error) *Error {
	return &Error{Tag: tag, Message: msg, Cause: cause, HTTPStatus: status}
}

// Validation builds a 400-class error for bad caller input.
func Validation(msg string) *Error {
	return newErr(TagValidation, http.StatusBadRequest, msg, nil)
}

// NotFound builds a 404-class error.
func NotFound(msg string) *Error {
	return newErr(TagNotFound, http.StatusNotFound, msg, nil)
}

// Store wraps a persistence-layer failure.
func Store(msg string, cause error) *Error {
	return newErr(TagStore, http.StatusInternalServerError, msg, cause)
}

// Spawn wraps an agent subprocess start failure.
func Spawn(msg string, cause error) *Error {
	return newErr(TagSpawn, http.StatusInternalServerError, msg, cause)
}

// Internal wraps an unclassified failure.
func Internal(msg string, cause error) *Error {
	return newErr(TagInternal, http.StatusInternalServerError, msg, cause)
}

// Wrap classifies a plain error as internal, unless it is already an *Error.
func Wrap(cause error, msg string) *Error {
	var existing *Error
	if errors.As(cause, &existing) {
		return existing
	}
	return Internal(msg, cause)
}

// HTTPStatusOf returns the status code an error maps to, defaulting to 500.
func HTTPStatusOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
