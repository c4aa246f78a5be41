// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"errors"
	"fmt"
)

// UserError reports a malformed submission (bad shape, name collision,
// dangling reference, task-limit overrun) as opposed to an internal
// failure; callers translate this into the taxonomy's "user" disposition
// (§7).
type UserError struct {
	msg string
}

func (e *UserError) Error() string { return e.msg }

func userErrorf(format string, args ...any) error {
	return &UserError{msg: fmt.Sprintf(format, args...)}
}

// IsUserError reports whether err (or anything it wraps) is a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}
