// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/osmo-project/osmo/internal/model"
)

// deriveKEK derives a per-user key-encryption-key from mek and owner via
// HKDF-SHA256 (§9: "per-user KEK wrapped by a rotating MEK"), so two users
// sharing the same MEK never share the same KEK.
func deriveKEK(mek []byte, owner string) ([]byte, error) {
	reader := hkdf.New(sha256.New, mek, nil, []byte("osmo-credential-kek:"+owner))
	kek := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, kek); err != nil {
		return nil, fmt.Errorf("derive kek for %q: %w", owner, err)
	}
	return kek, nil
}

// Seal envelope-encrypts plaintext for owner under ring's current MEK,
// returning the ciphertext and the kid it was wrapped under (stored as
// model.Credential.KEKID, despite the name — it names the MEK that
// produced this credential's derived KEK, per §9).
func Seal(ring *KeyRing, owner string, plaintext map[string]string) (ciphertext []byte, kekID string, err error) {
	kid, err := ring.Current()
	if err != nil {
		return nil, "", err
	}
	mek, err := ring.mekBytes(kid)
	if err != nil {
		return nil, "", err
	}
	kek, err := deriveKEK(mek, owner)
	if err != nil {
		return nil, "", err
	}

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, "", fmt.Errorf("build aead: %w", err)
	}

	plainBytes, err := json.Marshal(plaintext)
	if err != nil {
		return nil, "", fmt.Errorf("encode plaintext: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plainBytes, []byte(owner))
	return append(nonce, sealed...), kid, nil
}

// Open reverses Seal: it looks up the MEK named by c.KEKID in ring (which
// may be any MEK the ring has ever generated, not just the current one —
// the forward-compatible unwrap path §9 requires), derives c.Owner's KEK,
// and decrypts.
func Open(ring *KeyRing, c model.Credential) (map[string]string, error) {
	mek, err := ring.mekBytes(c.KEKID)
	if err != nil {
		return nil, fmt.Errorf("open credential %s/%s: %w", c.Owner, c.Name, err)
	}
	kek, err := deriveKEK(mek, c.Owner)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, fmt.Errorf("build aead: %w", err)
	}
	if len(c.Ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("open credential %s/%s: ciphertext too short", c.Owner, c.Name)
	}
	nonce, sealed := c.Ciphertext[:aead.NonceSize()], c.Ciphertext[aead.NonceSize():]

	plainBytes, err := aead.Open(nil, nonce, sealed, []byte(c.Owner))
	if err != nil {
		return nil, fmt.Errorf("open credential %s/%s: %w", c.Owner, c.Name, err)
	}

	var plaintext map[string]string
	if err := json.Unmarshal(plainBytes, &plaintext); err != nil {
		return nil, fmt.Errorf("decode credential %s/%s: %w", c.Owner, c.Name, err)
	}
	return plaintext, nil
}

// SealCredential is a convenience wrapper combining Seal with building a
// model.Credential ready for store.Store.PutCredential.
func SealCredential(ring *KeyRing, owner, name string, kind model.CredentialKind, bucketPrefix string, plaintext map[string]string) (model.Credential, error) {
	ciphertext, kekID, err := Seal(ring, owner, plaintext)
	if err != nil {
		return model.Credential{}, err
	}
	return model.Credential{
		Owner:        owner,
		Name:         name,
		Kind:         kind,
		BucketPrefix: bucketPrefix,
		Ciphertext:   ciphertext,
		KEKID:        kekID,
	}, nil
}
