// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package apierror is the error taxonomy translation seam (§7): it names
// the eleven error kinds the rest of OSMO's domain errors get sorted
// into, gives each an HTTP status and default code, and exposes
// FromDomain as the one place the (out-of-scope) HTTP layer would call
// to translate a domain error into a response. Grounded on the teacher's
// services/*/errors.go sentinel-error-plus-code-constant pattern
// (internal/openchoreo-api/legacyservices/errors.go), generalized into a
// typed Kind here since that package hand-wrote one pair of constants per
// resource rather than a shared taxonomy.
package apierror

import "net/http"

// Kind is one row of §7's error taxonomy table.
type Kind string

const (
	KindUserInput  Kind = "user_input"
	KindUsage      Kind = "usage"
	KindResource   Kind = "resource"
	KindCredential Kind = "credential"
	KindQuota      Kind = "quota"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindGone       Kind = "gone"
	KindDatabase   Kind = "database"
	KindBackend    Kind = "backend"
	KindServer     Kind = "server"
)

// statusTooEarly is RFC 8470's status code; net/http carries no constant
// for it (added after the stdlib's last status-code const refresh).
const statusTooEarly = 425

// Status returns the HTTP status §7 assigns to k.
func (k Kind) Status() int {
	switch k {
	case KindUserInput, KindUsage, KindResource, KindCredential, KindQuota:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return statusTooEarly
	case KindGone:
		return http.StatusGone
	case KindDatabase, KindBackend, KindServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// defaultCode returns the code FromDomain uses when the domain error
// doesn't carry its own.
func (k Kind) defaultCode() string {
	switch k {
	case KindUserInput:
		return "INVALID_INPUT"
	case KindUsage:
		return "INVALID_USAGE"
	case KindResource:
		return "NO_CANDIDATE_NODE"
	case KindCredential:
		return "CREDENTIAL_ERROR"
	case KindQuota:
		return "QUOTA_EXCEEDED"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "TOO_EARLY"
	case KindGone:
		return "GONE"
	case KindDatabase:
		return "DATABASE_ERROR"
	case KindBackend:
		return "BACKEND_ERROR"
	case KindServer:
		return "INTERNAL_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// Retryable reports whether errors of kind k are the Database class §7
// singles out for automatic retry with backoff (see RetryDatabase in retry.go).
func (k Kind) Retryable() bool { return k == KindDatabase }
