package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	defaultJWKSTTL     = time.Hour
	defaultJWKSTimeout = 10 * time.Second

	// Unknown key ids trigger at most one refetch per interval.
	defaultMinForcedRefresh = time.Minute
)

// JWKSCache caches the identity provider's RSA signing keys by key id.
type JWKSCache struct {
	uri        string
	httpClient *http.Client
	ttl        time.Duration
	minForced  time.Duration

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

type jwksDocument struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Alg string `json:"alg"`
		Use string `json:"use"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// NewJWKSCache creates a cache for the JWKS endpoint at uri.
func NewJWKSCache(uri string, client *http.Client, ttl time.Duration) *JWKSCache {
	if client == nil {
		client = &http.Client{Timeout: defaultJWKSTimeout}
	}
	if ttl <= 0 {
		ttl = defaultJWKSTTL
	}
	return &JWKSCache{
		uri:        uri,
		httpClient: client,
		ttl:        ttl,
		minForced:  defaultMinForcedRefresh,
		keys:       make(map[string]*rsa.PublicKey),
	}
}

// Key returns the public key for kid, refreshing the cache when the key is
// unknown or the cache has expired. A stale key is served if refresh fails.
// Refetches for unknown key ids are rate limited by the minimum forced refresh interval.
func (c *JWKSCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	expired := time.Since(c.fetched) > c.ttl
	c.mu.RUnlock()

	if ok && !expired {
		return key, nil
	}

	keys, err := c.refresh(ctx, !ok)
	if err != nil {
		if ok {
			return key, nil
		}
		return nil, err
	}

	key, ok = keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
	}
	return key, nil
}

func (c *JWKSCache) refresh(ctx context.Context, force bool) (map[string]*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if !force && time.Since(c.fetched) < c.ttl && len(c.keys) > 0 {
		return c.keys, nil
	}
	if force && !c.fetched.IsZero() && time.Since(c.fetched) < c.minForced {
		return c.keys, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uri, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		e := 0
		for _, b := range eBytes {
			e = e<<8 + int(b)
		}
		keys[k.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}
	}

	c.keys = keys
	c.fetched = time.Now()
	return c.keys, nil
}
