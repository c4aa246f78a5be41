// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package admission

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"

	"github.com/osmo-project/osmo/internal/ratelimit"
)

// Docker/OCI manifest media types accepted on a HEAD/GET (§4.4).
const (
	mediaOCIImageIndex      = "application/vnd.oci.image.index.v1+json"
	mediaOCIImageManifest   = "application/vnd.oci.image.manifest.v1+json"
	mediaDockerManifest     = "application/vnd.docker.distribution.manifest.v2+json"
	mediaDockerManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
)

var acceptedManifestTypes = strings.Join([]string{
	mediaOCIImageIndex, mediaOCIImageManifest, mediaDockerManifest, mediaDockerManifestList,
}, ", ")

// RegistryCredential is what a registry auth flow needs to exchange for a
// bearer token, resolved from a model.Credential of kind
// model.CredentialRegistry.
type RegistryCredential struct {
	Username string
	Password string
}

// digestLRU is the size-bounded, oldest-first-eviction image digest cache
// named in §5 ("In-memory caches (pool config, LRU image digests)").
type digestLRU struct {
	mu       sync.Mutex
	capacity int
	order    []string
	entries  map[string]string
}

func newDigestLRU(capacity int) *digestLRU {
	return &digestLRU{capacity: capacity, entries: map[string]string{}}
}

func (l *digestLRU) get(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.entries[key]
	return v, ok
}

func (l *digestLRU) put(key, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.entries[key]; !exists {
		if len(l.order) >= l.capacity {
			oldest := l.order[0]
			l.order = l.order[1:]
			delete(l.entries, oldest)
		}
		l.order = append(l.order, key)
	}
	l.entries[key] = value
}

// bearerTokenCache avoids re-exchanging a bearer token on every retry
// against the same realm/scope/identity until it expires.
type bearerTokenCache struct {
	mu      sync.Mutex
	entries map[string]cachedBearerToken
}

type cachedBearerToken struct {
	token   string
	expires time.Time
}

func newBearerTokenCache() *bearerTokenCache {
	return &bearerTokenCache{entries: map[string]cachedBearerToken{}}
}

func (c *bearerTokenCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		return "", false
	}
	return entry.token, true
}

func (c *bearerTokenCache) put(key, token string, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedBearerToken{token: token, expires: expires}
}

// tokenExpiry reads the exp claim off a registry bearer token without
// verifying its signature — the validator has no public key for whatever
// auth server issued it, only a TTL to bound the cache entry by. Opaque
// (non-JWT) tokens and tokens with no exp claim fall back to a
// conservative default.
func tokenExpiry(token string, fallback time.Duration) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(fallback)
}

// RegistryValidator validates that an image reference is pullable and
// pins it by digest (§4.4). One validator instance is shared across
// admissions so its digest cache and per-host circuit breakers persist.
type RegistryValidator struct {
	client      *http.Client
	limiter     *ratelimit.TokenBucket
	digests     *digestLRU
	tokens      *bearerTokenCache
	breakersMu  sync.Mutex
	breakers    map[string]*gobreaker.CircuitBreaker
	disableHost map[string]bool
	scheme      string // "https" in production; tests override to "http"
}

// NewRegistryValidator builds a validator. disableValidationHosts lists
// hosts skipped entirely (`disable_registry_validation`).
func NewRegistryValidator(client *http.Client, limiter *ratelimit.TokenBucket, disableValidationHosts []string) *RegistryValidator {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	disabled := make(map[string]bool, len(disableValidationHosts))
	for _, h := range disableValidationHosts {
		disabled[h] = true
	}
	return &RegistryValidator{
		client:      client,
		limiter:     limiter,
		digests:     newDigestLRU(1024),
		tokens:      newBearerTokenCache(),
		breakers:    map[string]*gobreaker.CircuitBreaker{},
		disableHost: disabled,
		scheme:      "https",
	}
}

func (v *RegistryValidator) breakerFor(host string) *gobreaker.CircuitBreaker {
	v.breakersMu.Lock()
	defer v.breakersMu.Unlock()
	if b, ok := v.breakers[host]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "registry:" + host,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
	})
	v.breakers[host] = b
	return b
}

// ImageRef is a parsed `host/repository:tag` or `host/repository@digest`
// reference.
type ImageRef struct {
	Host       string
	Repository string
	Reference  string // tag or "sha256:..." digest
}

var imageRefRE = regexp.MustCompile(`^([^/]+)/(.+?)(?::([^:@]+)|@(sha256:[0-9a-f]{64}))?$`)

// ParseImageRef splits image into host/repository/reference.
func ParseImageRef(image string) (ImageRef, error) {
	m := imageRefRE.FindStringSubmatch(image)
	if m == nil {
		return ImageRef{}, fmt.Errorf("cannot parse image reference %q", image)
	}
	ref := m[3]
	if ref == "" {
		ref = m[4]
	}
	if ref == "" {
		ref = "latest"
	}
	return ImageRef{Host: m[1], Repository: m[2], Reference: ref}, nil
}

// Validate resolves image to a digest-pinned reference, performing the
// HEAD → 401 → bearer-token → retry flow (§4.4). If cred is nil, the
// request proceeds unauthenticated (public image).
func (v *RegistryValidator) Validate(ctx context.Context, image string, cred *RegistryCredential) (string, error) {
	ref, err := ParseImageRef(image)
	if err != nil {
		return "", err
	}
	if v.disableHost[ref.Host] {
		return image, nil
	}

	if digest, ok := v.digests.get(image); ok {
		return digest, nil
	}

	var pinned string
	_, err = v.breakerFor(ref.Host).Execute(func() (any, error) {
		return nil, retry.Do(func() error {
			digest, manifestErr := v.headManifest(ctx, ref, cred)
			if manifestErr != nil {
				return manifestErr
			}
			pinned = digest
			return nil
		}, retry.Attempts(3), retry.Context(ctx))
	})
	if err != nil {
		return "", err
	}

	result := fmt.Sprintf("%s/%s@%s", ref.Host, ref.Repository, pinned)
	v.digests.put(image, result)
	return result, nil
}

func (v *RegistryValidator) headManifest(ctx context.Context, ref ImageRef, cred *RegistryCredential) (string, error) {
	if v.limiter != nil {
		if err := v.limiter.WaitForTokens(ctx, 1); err != nil {
			return "", err
		}
	}

	manifestURL := fmt.Sprintf("%s://%s/v2/%s/manifests/%s", v.scheme, ref.Host, ref.Repository, ref.Reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, manifestURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", acceptedManifestTypes)

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HEAD %s: %w", manifestURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		challenge := resp.Header.Get("Www-Authenticate")
		token, tokenErr := v.exchangeBearerToken(ctx, challenge, cred)
		if tokenErr != nil {
			return "", tokenErr
		}
		req2, err := http.NewRequestWithContext(ctx, http.MethodHead, manifestURL, nil)
		if err != nil {
			return "", err
		}
		req2.Header.Set("Accept", acceptedManifestTypes)
		req2.Header.Set("Authorization", "Bearer "+token)
		resp2, err := v.client.Do(req2)
		if err != nil {
			return "", fmt.Errorf("HEAD %s (authenticated): %w", manifestURL, err)
		}
		defer resp2.Body.Close()
		return digestFromResponse(resp2)
	}

	return digestFromResponse(resp)
}

// digestFromResponse returns the top-level `digest` field for an
// index/manifest-list response, or the Docker-Content-Digest header for a
// single-arch manifest (§4.4).
func digestFromResponse(resp *http.Response) (string, error) {
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from registry", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == mediaOCIImageIndex || contentType == mediaDockerManifestList {
		var body struct {
			Digest string `json:"digest"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Digest != "" {
			return body.Digest, nil
		}
	}
	digest := resp.Header.Get("Docker-Content-Digest")
	if digest == "" {
		return "", fmt.Errorf("registry response carried no digest")
	}
	return digest, nil
}

// wwwAuthenticateRE parses a `Bearer realm="...",service="...",scope="..."`
// challenge header.
var wwwAuthenticateRE = regexp.MustCompile(`(\w+)="([^"]*)"`)

func parseWWWAuthenticate(header string) map[string]string {
	claims := map[string]string{}
	for _, m := range wwwAuthenticateRE.FindAllStringSubmatch(header, -1) {
		claims[m[1]] = m[2]
	}
	return claims
}

func (v *RegistryValidator) exchangeBearerToken(ctx context.Context, challenge string, cred *RegistryCredential) (string, error) {
	claims := parseWWWAuthenticate(challenge)
	realm, ok := claims["realm"]
	if !ok {
		return "", fmt.Errorf("www-authenticate challenge carried no realm: %q", challenge)
	}

	q := url.Values{}
	if service, ok := claims["service"]; ok {
		q.Set("service", service)
	}
	if scope, ok := claims["scope"]; ok {
		q.Set("scope", scope)
	}

	tokenURL := realm
	if len(q) > 0 {
		tokenURL += "?" + q.Encode()
	}

	identity := "anonymous"
	if cred != nil {
		identity = cred.Username
	}
	cacheKey := identity + "@" + tokenURL
	if token, ok := v.tokens.get(cacheKey); ok {
		return token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return "", err
	}
	if cred != nil {
		req.SetBasicAuth(cred.Username, cred.Password)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch bearer token from %q: %w", realm, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bearer token endpoint %q returned status %d", realm, resp.StatusCode)
	}

	var body struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode bearer token response: %w", err)
	}
	token := body.Token
	if token == "" {
		token = body.AccessToken
	}
	if token == "" {
		return "", fmt.Errorf("bearer token response carried neither token nor access_token")
	}
	v.tokens.put(cacheKey, token, tokenExpiry(token, 60*time.Second))
	return token, nil
}
