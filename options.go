package toolbox

import (
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// ClientOption configures a ToolboxClient (e.g. WithHTTPClient, WithLogger).
type ClientOption func(*ToolboxClient)

// WithHTTPClient sets the http.Client used for every request. The client is
// shared by all tools loaded through this ToolboxClient and is never mutated;
// callers keep ownership of its lifecycle.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *ToolboxClient) {
		c.httpClient = hc
	}
}

// WithClientHeaders merges headers into the client-level header providers,
// applied to every manifest fetch and every invocation. A value may be a
// string literal or any resolvable form accepted for bound parameters; it
// must resolve to a string at request time.
func WithClientHeaders(headers map[string]any) ClientOption {
	return func(c *ToolboxClient) {
		for name, v := range headers {
			c.clientHeaders[name] = v
		}
	}
}

// WithClientHeader sets a single client-level header provider.
func WithClientHeader(name string, value any) ClientOption {
	return func(c *ToolboxClient) {
		c.clientHeaders[name] = value
	}
}

// WithLogger sets the logger. The default is zerolog.Nop(); pass a configured
// zerolog.Logger to see manifest fetches, invocations, and diagnostics.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *ToolboxClient) {
		c.logger = logger
	}
}

// ToolConfig collects the per-load settings for LoadTool and LoadToolset.
// Populate it through ToolOption values.
type ToolConfig struct {
	// AuthTokenGetters maps auth service names to token getters, consulted at
	// load time to satisfy the tool's auth requirements.
	AuthTokenGetters map[string]TokenGetter
	// BoundParams maps parameter names to fixed values or resolvable
	// functions; bound parameters disappear from the caller-facing schema.
	BoundParams map[string]any
	// Strict controls toolset loading: when true every tool must use every
	// supplied key, when false a key only has to be used by at least one tool
	// in the set. LoadTool always requires every key to be used.
	Strict bool
}

// ToolOption configures loading of a tool or toolset.
type ToolOption func(*ToolConfig)

// WithAuthTokenGetters merges getters, keyed by auth service name.
func WithAuthTokenGetters(getters map[string]TokenGetter) ToolOption {
	return func(cfg *ToolConfig) {
		for service, g := range getters {
			cfg.AuthTokenGetters[service] = g
		}
	}
}

// WithAuthTokenGetter registers a token getter for one auth service.
func WithAuthTokenGetter(service string, getter TokenGetter) ToolOption {
	return func(cfg *ToolConfig) {
		cfg.AuthTokenGetters[service] = getter
	}
}

// WithAuthTokenSources merges oauth2 token sources, keyed by auth service
// name. Shorthand for WithAuthTokenGetter(service, TokenSourceGetter(src)).
func WithAuthTokenSources(sources map[string]oauth2.TokenSource) ToolOption {
	return func(cfg *ToolConfig) {
		for service, src := range sources {
			cfg.AuthTokenGetters[service] = TokenSourceGetter(src)
		}
	}
}

// WithBoundParams merges bound parameter values, keyed by parameter name.
func WithBoundParams(params map[string]any) ToolOption {
	return func(cfg *ToolConfig) {
		for name, v := range params {
			cfg.BoundParams[name] = v
		}
	}
}

// WithBoundParam binds a single parameter.
func WithBoundParam(name string, value any) ToolOption {
	return func(cfg *ToolConfig) {
		cfg.BoundParams[name] = value
	}
}

// WithStrict sets strict mode for LoadToolset. See ToolConfig.Strict.
func WithStrict(strict bool) ToolOption {
	return func(cfg *ToolConfig) {
		cfg.Strict = strict
	}
}

// newToolConfig applies opts over an empty config.
func newToolConfig(opts []ToolOption) ToolConfig {
	cfg := ToolConfig{
		AuthTokenGetters: make(map[string]TokenGetter),
		BoundParams:      make(map[string]any),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}
