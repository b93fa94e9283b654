package toolbox

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ToolboxClient loads tools and toolsets from a Toolbox server and turns
// them into callable ToolboxTool instances. The client owns the base URL and
// the underlying http.Client; every loaded tool shares that http.Client, so
// closing its idle connections or swapping its transport affects all of them
// together.
type ToolboxClient struct {
	baseURL        string
	httpClient     *http.Client
	clientHeaders  map[string]any
	logger         zerolog.Logger
	manifestSchema *jsonschema.Schema
}

// NewClient returns a client for the Toolbox server at baseURL. Options set
// the HTTP client, client-level headers, and logging; defaults are a plain
// http.Client with debug-logged round trips and a no-op logger.
func NewClient(baseURL string, opts ...ClientOption) (*ToolboxClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q: scheme must be http or https", baseURL)
	}

	c := &ToolboxClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		clientHeaders: make(map[string]any),
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: &loggingTransport{base: http.DefaultTransport, logger: c.logger},
		}
	}

	sch, err := compileManifestSchema()
	if err != nil {
		return nil, err
	}
	c.manifestSchema = sch

	return c, nil
}

// LoadTool fetches the manifest for name and returns a callable tool. Every
// supplied auth token getter and bound parameter must be used by the tool;
// anything left over is a configuration error, reported with the offending
// keys listed.
func (c *ToolboxClient) LoadTool(ctx context.Context, name string, opts ...ToolOption) (*ToolboxTool, error) {
	cfg := newToolConfig(opts)

	m, err := c.fetchManifest(ctx, c.baseURL+"/api/tool/"+name)
	if err != nil {
		return nil, err
	}

	ts, ok := m.Tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}

	tool, used, err := c.newToolFromSchema(name, ts, cfg)
	if err != nil {
		return nil, err
	}

	if auth, bound := unusedKeys(cfg, used); len(auth) > 0 || len(bound) > 0 {
		return nil, &UnusedKeysError{Tool: name, AuthKeys: auth, BoundKeys: bound}
	}

	c.logger.Debug().Str("tool", name).Msg("tool loaded")

	return tool, nil
}

// LoadToolset fetches a toolset manifest (empty name means the server's
// default toolset) and returns its tools in sorted name order. Key accounting
// depends on mode: strict requires every tool to use every supplied key and
// fails on the first tool that does not; non-strict requires each key to be
// used by at least one tool in the set, accumulated across all of them.
func (c *ToolboxClient) LoadToolset(ctx context.Context, name string, opts ...ToolOption) ([]*ToolboxTool, error) {
	cfg := newToolConfig(opts)

	m, err := c.fetchManifest(ctx, c.baseURL+"/api/toolset/"+name)
	if err != nil {
		return nil, err
	}

	names := sortedKeys(m.Tools)
	tools := make([]*ToolboxTool, 0, len(names))

	usedAuth := make(map[string]struct{})
	usedBound := make(map[string]struct{})

	for _, toolName := range names {
		tool, used, err := c.newToolFromSchema(toolName, m.Tools[toolName], cfg)
		if err != nil {
			return nil, err
		}

		if cfg.Strict {
			if auth, bound := unusedKeys(cfg, used); len(auth) > 0 || len(bound) > 0 {
				return nil, &UnusedKeysError{Tool: toolName, AuthKeys: auth, BoundKeys: bound}
			}
		} else {
			maps.Copy(usedAuth, used.auth)
			maps.Copy(usedBound, used.bound)
		}

		tools = append(tools, tool)
	}

	if !cfg.Strict {
		if auth, bound := unusedKeys(cfg, usedKeys{auth: usedAuth, bound: usedBound}); len(auth) > 0 || len(bound) > 0 {
			return nil, &UnusedKeysError{Toolset: name, AuthKeys: auth, BoundKeys: bound}
		}
	}

	c.logger.Debug().Str("toolset", name).Int("tools", len(tools)).Msg("toolset loaded")

	return tools, nil
}

// fetchManifest GETs manifestURL with resolved client headers and validates
// the body against the wire contract.
func (c *ToolboxClient) fetchManifest(ctx context.Context, manifestURL string) (*Manifest, error) {
	headers, err := resolveHeaders(ctx, c.clientHeaders)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	for name, v := range headers {
		req.Header.Set(name, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest %s: %w", manifestURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest %s: read response: %w", manifestURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}

		return nil, fmt.Errorf("fetch manifest %s: status %d: %s", manifestURL, resp.StatusCode, msg)
	}

	return decodeManifest(manifestURL, body, c.manifestSchema)
}

// usedKeys records which caller-supplied keys a tool consumed.
type usedKeys struct {
	auth  map[string]struct{}
	bound map[string]struct{}
}

// newToolFromSchema partitions the manifest parameters against the supplied
// configuration and constructs the tool. A parameter with auth sources
// becomes an authn requirement and never reaches the caller-facing schema; a
// parameter matching a bound candidate is bound; the rest stay caller-facing.
// A bound candidate whose name matches an authenticated parameter is not
// consumed and will surface in the unused-key accounting.
func (c *ToolboxClient) newToolFromSchema(name string, ts ToolSchema, cfg ToolConfig) (*ToolboxTool, usedKeys, error) {
	used := usedKeys{auth: make(map[string]struct{}), bound: make(map[string]struct{})}

	authnParams := make(map[string][]string)
	bound := make(map[string]any)
	params := make([]ParameterSchema, 0, len(ts.Parameters))

	for _, p := range ts.Parameters {
		if len(p.AuthSources) > 0 {
			authnParams[p.Name] = slices.Clone(p.AuthSources)
			continue
		}

		if v, ok := cfg.BoundParams[p.Name]; ok {
			bound[p.Name] = v
			used.bound[p.Name] = struct{}{}
		}

		params = append(params, p)
	}

	available := sortedKeys(cfg.AuthTokenGetters)
	authn, authz, usedServices := identifyAuthRequirements(authnParams, ts.AuthRequired, available)
	used.auth = usedServices

	tool, err := newToolboxTool(toolState{
		httpClient:    c.httpClient,
		logger:        c.logger,
		baseURL:       c.baseURL,
		name:          name,
		description:   ts.Description,
		params:        params,
		bound:         bound,
		getters:       cfg.AuthTokenGetters,
		authnParams:   authn,
		authzTokens:   authz,
		clientHeaders: c.clientHeaders,
	})
	if err != nil {
		return nil, usedKeys{}, err
	}

	return tool, used, nil
}

// unusedKeys returns the supplied keys the tool did not consume, sorted.
func unusedKeys(cfg ToolConfig, used usedKeys) (auth, bound []string) {
	for _, service := range sortedKeys(cfg.AuthTokenGetters) {
		if _, ok := used.auth[service]; !ok {
			auth = append(auth, service)
		}
	}

	for _, name := range sortedKeys(cfg.BoundParams) {
		if _, ok := used.bound[name]; !ok {
			bound = append(bound, name)
		}
	}

	return auth, bound
}
