// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package admission

import (
	"fmt"
	"strings"

	"github.com/osmo-project/osmo/internal/model"
)

// DataAccess is the access mode a task input/output needs against a data
// backend (§4.4): "READ access is required for inputs; WRITE for
// outputs".
type DataAccess string

const (
	AccessRead  DataAccess = "READ"
	AccessWrite DataAccess = "WRITE"
)

// DataBackend describes one configured data backend (e.g. an S3-style
// object store) well enough for the credential check to decide whether
// environment auth may substitute for a stored credential.
type DataBackend struct {
	Name            string
	SupportsEnvAuth bool
}

// CredentialLookup resolves a user's stored credentials (both kinds),
// abstracting over internal/secrets + internal/store so admission
// depends only on this narrow seam (mirrors compiler.CrossWorkflowResolver's
// shape).
type CredentialLookup interface {
	// CredentialsFor returns every credential (registry and data) owned
	// by user; callers filter by Kind. Matching a data credential's
	// BucketPrefix picks the longest prefix itself, so ordering doesn't
	// matter.
	CredentialsFor(user string) ([]model.Credential, error)
}

// CheckDataAccess resolves the credential (if any) covering uri for user
// against backend, and verifies it permits access. If no credential
// matches, this only passes when backend supports environment auth
// (§4.4).
func CheckDataAccess(lookup CredentialLookup, user string, uri string, backend DataBackend, access DataAccess) error {
	creds, err := lookup.CredentialsFor(user)
	if err != nil {
		return fmt.Errorf("look up data credentials for %q: %w", user, err)
	}

	cred, ok := bestPrefixMatch(creds, uri)
	if !ok {
		if backend.SupportsEnvAuth {
			return nil
		}
		return userErrorf("no credential matches %q for user %q and backend %q has no environment auth", uri, user, backend.Name)
	}

	if access == AccessWrite {
		if mode, ok := cred.Plaintext["access"]; ok && mode == string(AccessRead) {
			return userErrorf("credential %q grants only READ access, but %q requires WRITE", cred.Name, uri)
		}
	}
	return nil
}

// bestPrefixMatch returns the credential whose BucketPrefix is the
// longest prefix of uri, preferring specificity over declaration order.
func bestPrefixMatch(creds []model.Credential, uri string) (model.Credential, bool) {
	var best model.Credential
	found := false
	for _, c := range creds {
		if c.Kind != model.CredentialData {
			continue
		}
		if !strings.HasPrefix(uri, c.BucketPrefix) {
			continue
		}
		if !found || len(c.BucketPrefix) > len(best.BucketPrefix) {
			best = c
			found = true
		}
	}
	return best, found
}

// RegistryCredentialFor resolves the registry credential (if any) for
// host from creds.
func RegistryCredentialFor(creds []model.Credential, host string) (*RegistryCredential, bool) {
	for _, c := range creds {
		if c.Kind != model.CredentialRegistry {
			continue
		}
		if c.Name != host {
			continue
		}
		return &RegistryCredential{Username: c.Plaintext["username"], Password: c.Plaintext["password"]}, true
	}
	return nil, false
}
