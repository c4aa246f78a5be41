// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package authz

import (
	"github.com/casbin/casbin/v2/util"
)

// poolMatchFunc lets a policy's pool field of "*" match any request pool.
func poolMatchFunc(args ...any) (any, error) {
	requestPool := args[0].(string)
	policyPool := args[1].(string)
	return policyPool == "*" || util.KeyMatch(requestPool, policyPool), nil
}

// actionMatchFunc lets a policy's action field of "*" (or a "group:*" style
// prefix) match a family of request actions, e.g. "workflow:*" covers
// "workflow:submit", "workflow:cancel", "workflow:restart".
func actionMatchFunc(args ...any) (any, error) {
	requestAction := args[0].(string)
	policyAction := args[1].(string)
	return policyAction == "*" || util.KeyMatch(requestAction, policyAction), nil
}
