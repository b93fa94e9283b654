// Package auth provides credential helpers for Toolbox auth services.
//
// The helpers return header-ready values: a Google ID token is fetched for a
// target audience and prefixed with "Bearer ", suitable as an Authorization
// client header on a ToolboxClient.
package auth

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
)

// TokenSourceCache stores ID token sources keyed by audience URL.
// Implementations must be safe for concurrent use.
type TokenSourceCache interface {
	Get(audience string) (oauth2.TokenSource, bool)
	Put(audience string, src oauth2.TokenSource)
}

// NewMemoryCache returns an empty in-memory TokenSourceCache.
func NewMemoryCache() TokenSourceCache {
	return &memoryCache{sources: make(map[string]oauth2.TokenSource)}
}

type memoryCache struct {
	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

func (c *memoryCache) Get(audience string) (oauth2.TokenSource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	src, ok := c.sources[audience]

	return src, ok
}

func (c *memoryCache) Put(audience string, src oauth2.TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sources[audience] = src
}

// processCache backs the helpers unless WithCache overrides it. Token sources
// are reused per audience for the lifetime of the process.
var processCache = NewMemoryCache()

// Option configures the Google ID token helpers.
type Option func(*config)

type config struct {
	cache TokenSourceCache
}

// WithCache overrides the process-scoped token source cache. Use it to
// isolate credentials between tenants, or to inject prepared sources in
// tests.
func WithCache(cache TokenSourceCache) Option {
	return func(c *config) {
		c.cache = cache
	}
}

// GoogleIDToken fetches a Google-signed ID token for the audience URL and
// returns it with the "Bearer " prefix, ready for an Authorization header.
// Token sources come from Application Default Credentials; the source's
// AccessToken field carries the ID token.
func GoogleIDToken(ctx context.Context, audience string, opts ...Option) (string, error) {
	cfg := config{cache: processCache}
	for _, opt := range opts {
		opt(&cfg)
	}

	src, ok := cfg.cache.Get(audience)
	if !ok {
		var err error

		src, err = idtoken.NewTokenSource(ctx, audience)
		if err != nil {
			return "", fmt.Errorf("id token source for %s: %w", audience, err)
		}

		cfg.cache.Put(audience, src)
	}

	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("id token for %s: %w", audience, err)
	}

	return "Bearer " + tok.AccessToken, nil
}

// GoogleIDTokenGetter binds GoogleIDToken to one audience. The result is
// assignable to toolbox.TokenGetter and usable directly as a client header
// provider.
func GoogleIDTokenGetter(audience string, opts ...Option) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return GoogleIDToken(ctx, audience, opts...)
	}
}
