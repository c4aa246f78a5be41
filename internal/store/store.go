// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package store is the Durable Store: gorm-backed persistence for
// workflows, task groups, tasks, user credentials, and backend heartbeats.
// It is the concrete implementation of the narrow seams internal/statemachine
// (Store, CancelStore) and internal/backend (HeartbeatStore) depend on, and
// exposes CredentialsFor for internal/admission's CredentialLookup — the
// same db-backed-repository shape as internal/configstore, one level down
// from the teacher's Casbin gorm adapter.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// UserError reports a caller mistake (unknown workflow/group/task, rename
// collision) as distinct from a storage failure, mirroring configstore's
// UserError so callers translate both the same way into the taxonomy's
// "user" disposition (§7).
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

// Store is the gorm-backed Durable Store.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New builds a Store over db, which must already have this package's row
// types migrated (see Migrate).
func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Migrate runs AutoMigrate for every row type this package persists.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&workflowRow{},
		&groupRow{},
		&taskRow{},
		&credentialRow{},
		&backendHeartbeatRow{},
	); err != nil {
		return fmt.Errorf("migrate store schema: %w", err)
	}
	return nil
}

// nowFunc is overridable in tests; production always uses wall-clock time.
var nowFunc = time.Now

func (s *Store) now() time.Time { return nowFunc() }

func isNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
