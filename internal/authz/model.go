// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package authz

// rbacModel is a Casbin RBAC model with a pool field on every policy:
// subjects hold roles through `g` (roles are not scoped to a pool), and each
// policy grants an action ("*" matches every action) on a pool ("*" matches
// every pool). This backs the Role config type's effect on workflow
// submission, cancellation/restart, and config mutation requests.
const rbacModel = `
[request_definition]
r = sub, pool, act

[policy_definition]
p = sub, pool, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && poolMatch(r.pool, p.pool) && actionMatch(r.act, p.act)
`
