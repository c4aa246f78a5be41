// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package secrets implements envelope encryption for stored credentials
// (§9 "Encryption of secrets at rest"): a per-user KEK derived from a
// rotating, JWK-formatted master encryption key (MEK). The MEK selected
// for new writes is named by id in service config; every MEK this process
// has ever known about stays in the KeyRing so old ciphertexts can still
// be unwrapped after rotation ("forward-compatible unwrap path").
package secrets

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

const mekSize = 32 // chacha20poly1305 key size

// KeyRing holds every MEK this process can unwrap ciphertext with, keyed
// by kid, plus which one new writes should use.
type KeyRing struct {
	mu      sync.RWMutex
	keys    map[string]jwk.Key
	current string
}

// NewKeyRing returns an empty ring; callers Generate an initial MEK or
// Import a persisted one before sealing anything.
func NewKeyRing() *KeyRing {
	return &KeyRing{keys: map[string]jwk.Key{}}
}

// Generate mints a fresh random MEK under kid, making it the current key
// for new seals (§9's MEK rotation). Previously current keys remain in
// the ring for unwrapping.
func (r *KeyRing) Generate(kid string) error {
	raw := make([]byte, mekSize)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate mek %q: %w", kid, err)
	}
	key, err := jwk.Import(raw)
	if err != nil {
		return fmt.Errorf("import mek %q: %w", kid, err)
	}
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return fmt.Errorf("set kid on mek %q: %w", kid, err)
	}
	if err := key.Set(jwk.AlgorithmKey, "dir"); err != nil {
		return fmt.Errorf("set alg on mek %q: %w", kid, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[kid] = key
	r.current = kid
	return nil
}

// Current returns the kid new seals should be wrapped under.
func (r *KeyRing) Current() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == "" {
		return "", fmt.Errorf("key ring has no current mek")
	}
	return r.current, nil
}

func (r *KeyRing) mekBytes(kid string) ([]byte, error) {
	r.mu.RLock()
	key, ok := r.keys[kid]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mek %q not found in key ring", kid)
	}
	var raw []byte
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("export mek %q: %w", kid, err)
	}
	return raw, nil
}

// MarshalJSON renders the ring as a JWK set, the wire form config storage
// persists the MEK material in (§9: "JWK-formatted").
func (r *KeyRing) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := jwk.NewSet()
	for _, key := range r.keys {
		if err := set.AddKey(key); err != nil {
			return nil, fmt.Errorf("add key to set: %w", err)
		}
	}
	doc := struct {
		Set     json.RawMessage `json:"keys_set"`
		Current string          `json:"current"`
	}{Current: r.current}

	setJSON, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("marshal key set: %w", err)
	}
	doc.Set = setJSON
	return json.Marshal(doc)
}

// UnmarshalKeyRing parses a JWK set previously produced by MarshalJSON.
func UnmarshalKeyRing(data []byte) (*KeyRing, error) {
	var doc struct {
		Set     json.RawMessage `json:"keys_set"`
		Current string          `json:"current"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal key ring envelope: %w", err)
	}

	set, err := jwk.Parse(doc.Set)
	if err != nil {
		return nil, fmt.Errorf("parse key set: %w", err)
	}

	ring := NewKeyRing()
	ring.current = doc.Current
	for i := range set.Len() {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		var kid string
		if err := key.Get(jwk.KeyIDKey, &kid); err != nil || kid == "" {
			return nil, fmt.Errorf("mek in set missing kid")
		}
		ring.keys[kid] = key
	}
	return ring, nil
}
