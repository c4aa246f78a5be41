// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package apierror

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/osmo-project/osmo/internal/admission"
	"github.com/osmo-project/osmo/internal/compiler"
	"github.com/osmo-project/osmo/internal/configstore"
	"github.com/osmo-project/osmo/internal/store"
)

// FromDomain classifies err into the taxonomy's HTTP status and code
// (§7), the seam the (out-of-scope) HTTP layer calls at the request
// boundary. Every package's own UserError type is recognized here so
// callers never need to know which package produced the error — this is
// the single place that knowledge lives.
func FromDomain(err error) (status int, code string) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind.Status(), apiErr.Code
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return KindNotFound.Status(), KindNotFound.defaultCode()
	case errors.Is(err, context.DeadlineExceeded):
		return KindServer.Status(), "TIMEOUT"
	case configstore.IsUserError(err), store.IsUserError(err), admission.IsUserError(err), compiler.IsUserError(err):
		return KindUserInput.Status(), KindUserInput.defaultCode()
	default:
		return KindServer.Status(), KindServer.defaultCode()
	}
}

// Classify is FromDomain's richer sibling: it returns the full *Error
// rather than just (status, code), synthesizing one from a recognized
// sentinel when the caller didn't already construct one with this
// package's constructors.
func Classify(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound("%s", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return Server(err, "operation timed out")
	case configstore.IsUserError(err), store.IsUserError(err), admission.IsUserError(err), compiler.IsUserError(err):
		return UserInput("%s", err.Error())
	default:
		return Server(err, "unexpected internal error")
	}
}
