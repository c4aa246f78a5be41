// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"github.com/osmo-project/osmo/internal/model"
)

// PutCredential creates or replaces the credential named (owner, name).
// Ciphertext/KEKID are produced by internal/secrets; this layer only
// persists them.
func (s *Store) PutCredential(ctx context.Context, c model.Credential) error {
	row := credentialToRow(c)
	err := s.db.WithContext(ctx).
		Where("owner = ? AND name = ?", c.Owner, c.Name).
		Assign(row).
		FirstOrCreate(&row).Error
	if err != nil {
		return fmt.Errorf("put credential %s/%s: %w", c.Owner, c.Name, err)
	}
	return nil
}

// DeleteCredential removes the credential named (owner, name).
func (s *Store) DeleteCredential(ctx context.Context, owner, name string) error {
	res := s.db.WithContext(ctx).Where("owner = ? AND name = ?", owner, name).Delete(&credentialRow{})
	if res.Error != nil {
		return fmt.Errorf("delete credential %s/%s: %w", owner, name, res.Error)
	}
	if res.RowsAffected == 0 {
		return userErrorf("credential %s/%s not found", owner, name)
	}
	return nil
}

// CredentialsFor implements internal/admission.CredentialLookup: every
// credential (registry and data) owned by user. Ciphertext is returned
// undecrypted; callers pass it through internal/secrets before use.
func (s *Store) CredentialsFor(user string) ([]model.Credential, error) {
	var rows []credentialRow
	if err := s.db.Where("owner = ?", user).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("credentials for %q: %w", user, err)
	}
	out := make([]model.Credential, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToCredential(row))
	}
	return out, nil
}
