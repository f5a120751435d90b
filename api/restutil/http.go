// Package restutil holds the small HTTP plumbing every RPC handler in
// package api shares: JSON request/response framing and an error type
// that carries its own status code, mirroring the teacher's own
// api/restutil package (the thin adapter layer spec.md §1 excludes from
// the core and SPEC_FULL.md §6 commits to building as ambient surface).
package restutil

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// JSONContentType is the Content-Type every response in package api is
// written with.
const JSONContentType = "application/json; charset=utf-8"

// HandlerFunc is an http.HandlerFunc that can fail; WrapHandlerFunc
// adapts one into a plain http.HandlerFunc, translating the returned
// error into a status code and plain-text body.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// httpError pairs a cause with the status code it should produce.
type httpError struct {
	cause  error
	status int
}

func (e *httpError) Error() string {
	if e.cause == nil {
		return ""
	}
	return e.cause.Error()
}

func (e *httpError) Cause() error { return e.cause }

// HTTPError wraps cause so WrapHandlerFunc replies with status instead
// of the default 500.
func HTTPError(cause error, status int) error {
	return &httpError{cause: cause, status: status}
}

// BadRequest is HTTPError pinned to 400, for malformed request bodies —
// the most common failure a thin decode-only adapter produces.
func BadRequest(cause error) error { return HTTPError(cause, http.StatusBadRequest) }

// Forbidden is HTTPError pinned to 403.
func Forbidden(cause error) error { return HTTPError(cause, http.StatusForbidden) }

// WrapHandlerFunc adapts f into an http.HandlerFunc: a nil error writes
// nothing further (the handler already wrote its own response body), a
// plain error writes 500 with the error's message, and an *httpError
// writes its own status with the wrapped cause's message.
func WrapHandlerFunc(f HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err == nil {
			return
		}
		status := http.StatusInternalServerError
		cause := err
		if he, ok := err.(*httpError); ok {
			status = he.status
			cause = he.cause
		}
		msg := ""
		if cause != nil {
			msg = cause.Error()
		}
		http.Error(w, msg, status)
	}
}

// ParseJSON decodes r's body into v, wrapped with errors.WithMessage so
// the caller can tell a malformed body from any other failure.
func ParseJSON(r io.Reader, v interface{}) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return errors.WithMessage(err, "decode JSON body")
	}
	return nil
}

// WriteJSON encodes v as the response body with JSONContentType and a
// 200 status.
func WriteJSON(w http.ResponseWriter, v interface{}) error {
	w.Header().Set("Content-Type", JSONContentType)
	return json.NewEncoder(w).Encode(v)
}
