// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package remote

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a remote platform failure for the sync orchestrator.
type ErrorKind string

const (
	// KindRateLimited means the platform throttled the request.
	KindRateLimited ErrorKind = "rate_limited"
	// KindUnavailable means the requested item is gone or hidden.
	KindUnavailable ErrorKind = "unavailable"
	// KindUnauthorized means the session credential was rejected.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindTransient covers network failures and 5xx responses.
	KindTransient ErrorKind = "transient"
)

// Error is a typed remote platform failure.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	APICode    int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s: %s (http %d, code %d): %s", e.Op, e.Kind, e.StatusCode, e.APICode, e.Message)
	}
	return fmt.Sprintf("remote %s: %s: %s", e.Op, e.Kind, e.Message)
}

// KindOf extracts the error kind, if err is a remote error.
func KindOf(err error) (ErrorKind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}

func isKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsRateLimited reports whether err is a platform throttling error.
func IsRateLimited(err error) bool { return isKind(err, KindRateLimited) }

// IsUnavailable reports whether err means the item is gone.
func IsUnavailable(err error) bool { return isKind(err, KindUnavailable) }

// IsUnauthorized reports whether err is a credential rejection.
func IsUnauthorized(err error) bool { return isKind(err, KindUnauthorized) }

// IsTransient reports whether err is a retryable transport failure.
func IsTransient(err error) bool { return isKind(err, KindTransient) }
