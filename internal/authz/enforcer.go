// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package authz enforces the Role config type (§3) against requests to
// submit/cancel/restart workflows and to mutate config objects. It is a
// thin Casbin wrapper, following the same construction shape as the
// teacher's Casbin-backed enforcer: an RBAC model plus a database-backed
// policy adapter, with custom matcher functions for wildcard actions/pools.
package authz

import (
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

// Request is a single authorization question: can subject perform act
// against pool (pool is "*" for pool-agnostic actions such as config
// mutation).
type Request struct {
	Subject string
	Pool    string
	Action  string
}

// Enforcer answers authorization Requests against the policy rules the
// Casbin gorm adapter persists in the casbin_rule table.
type Enforcer struct {
	enforcer casbin.IEnforcer
	logger   *slog.Logger
}

// New builds an Enforcer backed by a Casbin gorm adapter sharing db with the
// rest of the durable store.
func New(db *gorm.DB, logger *slog.Logger) (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}

	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "osmo", "casbin_rule")
	if err != nil {
		return nil, fmt.Errorf("create casbin gorm adapter: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	if err := e.AddFunction("poolMatch", poolMatchFunc); err != nil {
		return nil, fmt.Errorf("register poolMatch: %w", err)
	}
	if err := e.AddFunction("actionMatch", actionMatchFunc); err != nil {
		return nil, fmt.Errorf("register actionMatch: %w", err)
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	return &Enforcer{enforcer: e, logger: logger}, nil
}

// Allowed reports whether req is permitted by the currently loaded policy.
func (e *Enforcer) Allowed(req Request) (bool, error) {
	ok, err := e.enforcer.Enforce(req.Subject, req.Pool, req.Action)
	if err != nil {
		return false, fmt.Errorf("enforce %+v: %w", req, err)
	}
	if !ok {
		e.logger.Debug("authorization denied", "subject", req.Subject, "pool", req.Pool, "action", req.Action)
	}
	return ok, nil
}

// Grant adds a policy rule binding subject to action on pool ("*" for
// wildcards on either field). The config store does not call it: writing a
// Role config revision does not change Casbin's policy table.
func (e *Enforcer) Grant(subject, pool, action string) error {
	_, err := e.enforcer.AddPolicy(subject, pool, action)
	return err
}

// Revoke removes a previously granted rule.
func (e *Enforcer) Revoke(subject, pool, action string) error {
	_, err := e.enforcer.RemovePolicy(subject, pool, action)
	return err
}

// AssignRole binds subject to roleName via the `g` grouping relation so that
// Grant calls made against roleName apply transitively to subject.
func (e *Enforcer) AssignRole(subject, roleName string) error {
	_, err := e.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}
