package toolbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// toolState carries the construction inputs of a ToolboxTool. Derivation
// methods snapshot it, adjust one piece, and run it back through the
// constructor so every check applies to derived instances too.
type toolState struct {
	httpClient    *http.Client
	logger        zerolog.Logger
	baseURL       string
	name          string
	description   string
	params        []ParameterSchema // non-auth parameters, bound ones included
	bound         map[string]any
	getters       map[string]TokenGetter
	authnParams   map[string][]string // outstanding: param name -> acceptable services
	authzTokens   []string            // outstanding authorization services
	clientHeaders map[string]any
}

// ToolboxTool is a directly callable tool loaded from a Toolbox server.
// Instances are immutable: BindParams and AddAuthTokenGetters return new
// instances and never touch the receiver, so a tool can be shared across
// goroutines and derived per caller or per request.
type ToolboxTool struct {
	name          string
	description   string
	params        []ParameterSchema
	bound         map[string]any
	getters       map[string]TokenGetter
	authnParams   map[string][]string
	authzTokens   []string
	clientHeaders map[string]any
	httpClient    *http.Client
	baseURL       string
	invokeURL     string
	validator     *argsValidator
	logger        zerolog.Logger
}

// newToolboxTool builds a tool instance. It rejects auth services whose
// derived "<service>_token" header collides with a client header, compiles
// the caller-facing validator (bound parameters excluded), and warns when
// credential-bearing configuration would travel over plain HTTP.
func newToolboxTool(s toolState) (*ToolboxTool, error) {
	for _, service := range sortedKeys(s.getters) {
		header := service + "_token"
		if _, clash := s.clientHeaders[header]; clash {
			return nil, fmt.Errorf("%w: auth service %q derives header %q, which is already a client header", ErrAuthConflict, service, header)
		}
	}

	userParams := make([]ParameterSchema, 0, len(s.params))
	for _, p := range s.params {
		if _, isBound := s.bound[p.Name]; !isBound {
			userParams = append(userParams, p)
		}
	}

	validator, err := newArgsValidator(userParams)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", s.name, err)
	}

	if (len(s.getters) > 0 || len(s.clientHeaders) > 0) && !strings.HasPrefix(s.baseURL, "https://") {
		s.logger.Warn().Str("tool", s.name).Msg("sending credentials over a non-HTTPS connection")
	}

	return &ToolboxTool{
		name:          s.name,
		description:   s.description,
		params:        slices.Clone(s.params),
		bound:         maps.Clone(s.bound),
		getters:       maps.Clone(s.getters),
		authnParams:   cloneServiceLists(s.authnParams),
		authzTokens:   slices.Clone(s.authzTokens),
		clientHeaders: maps.Clone(s.clientHeaders),
		httpClient:    s.httpClient,
		baseURL:       s.baseURL,
		invokeURL:     s.baseURL + "/api/tool/" + s.name + "/invoke",
		validator:     validator,
		logger:        s.logger,
	}, nil
}

// Name returns the tool name.
func (t *ToolboxTool) Name() string { return t.name }

// Description returns the tool description from the manifest.
func (t *ToolboxTool) Description() string { return t.description }

// Parameters returns the caller-facing parameters: bound and authenticated
// parameters are excluded. The returned slice is a copy.
func (t *ToolboxTool) Parameters() []ParameterSchema {
	out := make([]ParameterSchema, 0, len(t.params))
	for _, p := range t.params {
		if _, isBound := t.bound[p.Name]; !isBound {
			out = append(out, p)
		}
	}

	return out
}

// InputSchema renders the caller-facing parameters as a JSON Schema object
// document, the shape LLM providers expect in a tool declaration.
func (t *ToolboxTool) InputSchema() ([]byte, error) {
	return marshalParamsSchema(t.Parameters())
}

// AuthRequirements returns the service names that could still satisfy the
// tool's outstanding auth requirements, sorted. Empty means ready to invoke.
func (t *ToolboxTool) AuthRequirements() []string {
	return t.missingServices()
}

// Invoke calls the tool with args (nil means no arguments). The pipeline:
// outstanding-auth check, argument validation, bound-parameter resolution,
// nil stripping, header and token resolution, then a single POST to the
// invoke endpoint. No retries; transport and server errors return as-is.
func (t *ToolboxTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if len(t.authnParams) > 0 || len(t.authzTokens) > 0 {
		return nil, &AuthError{Tool: t.name, Missing: t.missingServices()}
	}

	if args == nil {
		args = map[string]any{}
	}

	if violations := t.validator.validate(args); len(violations) > 0 {
		return nil, &ArgsError{Tool: t.name, Violations: violations}
	}

	bound, err := resolveParams(ctx, t.bound)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", t.name, err)
	}

	payload := make(map[string]any, len(args)+len(bound))
	maps.Copy(payload, args)
	maps.Copy(payload, bound) // bound values win on collision
	payload = omitNil(payload)

	headers, err := t.requestHeaders(ctx)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", t.name, err)
	}

	return t.post(ctx, payload, headers)
}

// requestHeaders resolves client headers and auth tokens concurrently and
// merges them. Token headers are named "<service>_token".
func (t *ToolboxTool) requestHeaders(ctx context.Context) (map[string]string, error) {
	var (
		headers map[string]string
		tokens  map[string]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		headers, err = resolveHeaders(gctx, t.clientHeaders)
		return err
	})
	g.Go(func() error {
		var err error
		tokens, err = resolveTokens(gctx, t.getters)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(headers)+len(tokens))
	maps.Copy(out, headers)
	for service, tok := range tokens {
		out[service+"_token"] = tok
	}

	return out, nil
}

func (t *ToolboxTool) post(ctx context.Context, payload map[string]any, headers map[string]string) (any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tool %q: encode payload: %w", t.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.invokeURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", t.name, err)
	}

	req.Header.Set("Content-Type", "application/json")
	for name, v := range headers {
		req.Header.Set(name, v)
	}

	log := t.logger.With().Str("tool", t.name).Str("invocation", uuid.NewString()).Logger()
	log.Debug().Int("payload_bytes", len(body)).Msg("invoking tool")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("invocation request failed")
		return nil, fmt.Errorf("invoke tool %q: %w", t.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Msg("read invocation response")
		return nil, fmt.Errorf("invoke tool %q: read response: %w", t.name, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err := invokeError(t.name, resp.StatusCode, raw)
		log.Error().Int("status", resp.StatusCode).Str("response", diagnostic(raw)).Msg("tool invocation rejected")

		return nil, err
	}

	var out struct {
		Result any `json:"result"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Error().Err(err).Str("response", diagnostic(raw)).Msg("decode invocation response")
		return nil, fmt.Errorf("invoke tool %q: decode response: %w", t.name, err)
	}

	log.Debug().Msg("invocation complete")

	return out.Result, nil
}

// BindParam fixes one parameter to a value or resolvable function, removing
// it from the caller-facing schema. Returns a new instance.
func (t *ToolboxTool) BindParam(name string, value any) (*ToolboxTool, error) {
	return t.BindParams(map[string]any{name: value})
}

// BindParams fixes several parameters at once. A parameter can be bound only
// once across a tool's derivation history, and only if it exists on the
// tool's original parameter set; authenticated parameters never qualify.
func (t *ToolboxTool) BindParams(params map[string]any) (*ToolboxTool, error) {
	for _, name := range sortedKeys(params) {
		if _, bound := t.bound[name]; bound {
			return nil, fmt.Errorf("%w: parameter %q is already bound on tool %q", ErrBindConflict, name, t.name)
		}

		if !t.hasParam(name) {
			return nil, fmt.Errorf("%w: no parameter named %q on tool %q", ErrBindConflict, name, t.name)
		}
	}

	merged := make(map[string]any, len(t.bound)+len(params))
	maps.Copy(merged, t.bound)
	maps.Copy(merged, params)

	s := t.state()
	s.bound = merged

	return newToolboxTool(s)
}

// AddAuthTokenGetter registers a token getter for one auth service. Returns a
// new instance.
func (t *ToolboxTool) AddAuthTokenGetter(service string, getter TokenGetter) (*ToolboxTool, error) {
	return t.AddAuthTokenGetters(map[string]TokenGetter{service: getter})
}

// AddAuthTokenGetters registers token getters keyed by auth service name.
// Every added service must match an outstanding requirement: duplicates and
// services the tool has no use for are rejected. Requirements satisfied by
// the new services are absent from the returned instance.
func (t *ToolboxTool) AddAuthTokenGetters(getters map[string]TokenGetter) (*ToolboxTool, error) {
	services := sortedKeys(getters)

	for _, service := range services {
		if _, dup := t.getters[service]; dup {
			return nil, fmt.Errorf("%w: token getter for service %q is already registered on tool %q", ErrAuthConflict, service, t.name)
		}
	}

	authn, authz, used := identifyAuthRequirements(t.authnParams, t.authzTokens, services)

	var unused []string
	for _, service := range services {
		if _, ok := used[service]; !ok {
			unused = append(unused, service)
		}
	}

	if len(unused) > 0 {
		return nil, &UnusedKeysError{Tool: t.name, AuthKeys: unused}
	}

	merged := make(map[string]TokenGetter, len(t.getters)+len(getters))
	maps.Copy(merged, t.getters)
	maps.Copy(merged, getters)

	s := t.state()
	s.getters = merged
	s.authnParams = authn
	s.authzTokens = authz

	return newToolboxTool(s)
}

// state snapshots the construction inputs for derivation. The constructor
// clones every map and slice, so derived instances never alias the receiver.
func (t *ToolboxTool) state() toolState {
	return toolState{
		httpClient:    t.httpClient,
		logger:        t.logger,
		baseURL:       t.baseURL,
		name:          t.name,
		description:   t.description,
		params:        t.params,
		bound:         t.bound,
		getters:       t.getters,
		authnParams:   t.authnParams,
		authzTokens:   t.authzTokens,
		clientHeaders: t.clientHeaders,
	}
}

func (t *ToolboxTool) hasParam(name string) bool {
	for _, p := range t.params {
		if p.Name == name {
			return true
		}
	}

	return false
}

// missingServices returns the union of services named by the outstanding
// requirements, sorted.
func (t *ToolboxTool) missingServices() []string {
	set := make(map[string]struct{})

	for _, services := range t.authnParams {
		for _, svc := range services {
			set[svc] = struct{}{}
		}
	}

	for _, svc := range t.authzTokens {
		set[svc] = struct{}{}
	}

	return sortedKeys(set)
}

// invokeError extracts the server's error message: the structured
// {"error": ...} body when present, the raw body otherwise.
func invokeError(name string, status int, raw []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return fmt.Errorf("invoke tool %q: %s", name, e.Error)
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(status)
	}

	return fmt.Errorf("invoke tool %q: status %d: %s", name, status, msg)
}

// diagnostic trims a response body for logging.
func diagnostic(raw []byte) string {
	const maxLen = 2048

	s := strings.TrimSpace(string(raw))
	if len(s) > maxLen {
		return s[:maxLen] + "...(truncated)"
	}

	return s
}

func cloneServiceLists(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for param, services := range m {
		out[param] = slices.Clone(services)
	}

	return out
}
