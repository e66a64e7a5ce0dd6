// Package cxierrors defines the typed error kinds the indexer and query
// surface use (spec §7): InvalidArgument, NotFound, ParseFailure,
// IOFailure, CacheCorruption, Uninitialized.
package cxierrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for the QueryFacade's structured {code, message}
// surface.
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindNotFound        Kind = "not_found"
	KindParseFailure    Kind = "parse_failure"
	KindIOFailure       Kind = "io_failure"
	KindCacheCorruption Kind = "cache_corruption"
	KindUninitialized   Kind = "uninitialized"
	KindInternal        Kind = "internal"
)

// CxiError is the common shape every error kind below implements.
type CxiError struct {
	Kind       Kind
	Operation  string
	Detail     string
	Underlying error
	Timestamp  time.Time
}

func (e *CxiError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Detail, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Detail)
}

func (e *CxiError) Unwrap() error { return e.Underlying }

func newErr(kind Kind, op, detail string, underlying error) *CxiError {
	return &CxiError{Kind: kind, Operation: op, Detail: detail, Underlying: underlying, Timestamp: time.Now()}
}

// InvalidArgument reports a bad regex, an unknown symbol kind, or a missing
// required argument. No state change has occurred.
func InvalidArgument(op, detail string) *CxiError {
	return newErr(KindInvalidArgument, op, detail, nil)
}

// NotFound reports that a referenced class or function is absent from the
// index.
func NotFound(op, detail string) *CxiError {
	return newErr(KindNotFound, op, detail, nil)
}

// ParseFailure reports that the front-end returned no translation unit for
// a file.
func ParseFailure(path string, underlying error) *CxiError {
	return newErr(KindParseFailure, "parse", path, underlying)
}

// IOFailure reports that a source file or cache entry could not be read.
func IOFailure(op, path string, underlying error) *CxiError {
	return newErr(KindIOFailure, op, path, underlying)
}

// CacheCorruption reports that a stored artifact could not be decoded or
// carries the wrong version; the artifact should be rebuilt.
func CacheCorruption(op, path string, underlying error) *CxiError {
	return newErr(KindCacheCorruption, op, path, underlying)
}

// Uninitialized reports that a query operation was issued before
// set_project_directory.
func Uninitialized(op string) *CxiError {
	return newErr(KindUninitialized, op, "project directory not set", nil)
}

// Internal wraps an unexpected, programmer-facing error.
func Internal(op string, underlying error) *CxiError {
	return newErr(KindInternal, op, "internal error", underlying)
}

// AsCxiError unwraps err to a *CxiError if possible.
func AsCxiError(err error) (*CxiError, bool) {
	var ce *CxiError
	ok := errors.As(err, &ce)
	return ce, ok
}
