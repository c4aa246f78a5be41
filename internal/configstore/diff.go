// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package configstore

import (
	"fmt"
	"reflect"

	"github.com/osmo-project/osmo/internal/clone"
	"github.com/osmo-project/osmo/internal/model"
)

// secretsKey is the reserved top-level field under which a config object's
// secret values live (e.g. backend credentials embedded in a pool config).
// Everything else in Data is shown as-is by Diff.
const secretsKey = "secrets"

func secretChangedSentinel(revision int64) string {
	return fmt.Sprintf("********** <secret changed in r%d>", revision)
}

const secretUnchangedOpaque = "**********"

// Diff renders b's data relative to a (§4.1 "Secret diffing for diff"): any
// entry under the reserved "secrets" map whose value changed between a and
// b is replaced with a sentinel naming b's revision; unchanged secrets show
// as an opaque placeholder. Every other field is shown verbatim.
func Diff(a, b model.ConfigRevision) map[string]any {
	out := clone.DeepCopyMap(b.Data)
	if out == nil {
		out = map[string]any{}
	}

	bSecrets, _ := out[secretsKey].(map[string]any)
	if bSecrets == nil {
		return out
	}

	aSecrets, _ := a.Data[secretsKey].(map[string]any)

	masked := make(map[string]any, len(bSecrets))
	for k, bv := range bSecrets {
		av, existed := aSecrets[k]
		if existed && reflect.DeepEqual(av, bv) {
			masked[k] = secretUnchangedOpaque
		} else {
			masked[k] = secretChangedSentinel(b.Revision)
		}
	}
	out[secretsKey] = masked
	return out
}
