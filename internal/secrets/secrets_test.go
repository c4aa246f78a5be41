// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/secrets"
)

func TestSealThenOpenRoundTrips(t *testing.T) {
	ring := secrets.NewKeyRing()
	require.NoError(t, ring.Generate("mek-1"))

	cred, err := secrets.SealCredential(ring, "alice", "registry-1", model.CredentialRegistry, "", map[string]string{
		"username": "alice", "password": "hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, "mek-1", cred.KEKID)
	assert.NotEmpty(t, cred.Ciphertext)

	plaintext, err := secrets.Open(ring, cred)
	require.NoError(t, err)
	assert.Equal(t, "alice", plaintext["username"])
	assert.Equal(t, "hunter2", plaintext["password"])
}

func TestOpenAfterRotationStillUnwrapsOldMEK(t *testing.T) {
	ring := secrets.NewKeyRing()
	require.NoError(t, ring.Generate("mek-1"))

	cred, err := secrets.SealCredential(ring, "alice", "data-1", model.CredentialData, "s3://bucket/", map[string]string{"key": "v1"})
	require.NoError(t, err)

	require.NoError(t, ring.Generate("mek-2"))
	current, err := ring.Current()
	require.NoError(t, err)
	assert.Equal(t, "mek-2", current)

	plaintext, err := secrets.Open(ring, cred)
	require.NoError(t, err)
	assert.Equal(t, "v1", plaintext["key"])
}

func TestOpenWithUnknownMEKFails(t *testing.T) {
	ring := secrets.NewKeyRing()
	require.NoError(t, ring.Generate("mek-1"))

	cred := model.Credential{Owner: "alice", Name: "x", KEKID: "mek-missing", Ciphertext: []byte("anything-long-enough-to-not-underflow")}
	_, err := secrets.Open(ring, cred)
	require.Error(t, err)
}

func TestSealWithNoCurrentMEKFails(t *testing.T) {
	ring := secrets.NewKeyRing()
	_, _, err := secrets.Seal(ring, "alice", map[string]string{"a": "b"})
	require.Error(t, err)
}

func TestDifferentOwnersGetDifferentCiphertextForSamePlaintext(t *testing.T) {
	ring := secrets.NewKeyRing()
	require.NoError(t, ring.Generate("mek-1"))

	plaintext := map[string]string{"token": "same-value"}
	credA, err := secrets.SealCredential(ring, "alice", "n", model.CredentialData, "", plaintext)
	require.NoError(t, err)
	credB, err := secrets.SealCredential(ring, "bob", "n", model.CredentialData, "", plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, credA.Ciphertext, credB.Ciphertext)

	_, err = secrets.Open(ring, model.Credential{Owner: "bob", KEKID: credA.KEKID, Ciphertext: credA.Ciphertext})
	require.Error(t, err, "alice's ciphertext must not open under bob's derived KEK")
}

func TestKeyRingMarshalUnmarshalRoundTrips(t *testing.T) {
	ring := secrets.NewKeyRing()
	require.NoError(t, ring.Generate("mek-1"))
	require.NoError(t, ring.Generate("mek-2"))

	data, err := ring.MarshalJSON()
	require.NoError(t, err)

	restored, err := secrets.UnmarshalKeyRing(data)
	require.NoError(t, err)
	current, err := restored.Current()
	require.NoError(t, err)
	assert.Equal(t, "mek-2", current)

	cred, err := secrets.SealCredential(ring, "alice", "n", model.CredentialData, "", map[string]string{"k": "v"})
	require.NoError(t, err)
	plaintext, err := secrets.Open(restored, cred)
	require.NoError(t, err)
	assert.Equal(t, "v", plaintext["k"])
}
