package toolbox

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for toolbox. Use errors.Is to check.
var (
	ErrToolNotFound    = errors.New("tool not found")
	ErrManifestInvalid = errors.New("manifest validation failed")
	ErrInvalidArgs     = errors.New("argument validation failed")
	ErrAuthIncomplete  = errors.New("auth requirements not met")
	ErrBindConflict    = errors.New("parameter binding conflict")
	ErrAuthConflict    = errors.New("auth token getter conflict")
	ErrUnusedKeys      = errors.New("unused auth token getters or bound parameters")
)

// ManifestError reports a manifest that failed structural or semantic
// validation. Violations holds every problem found, not only the first, so a
// broken server can be fixed in one round trip.
type ManifestError struct {
	URL        string
	Violations []string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("invalid manifest from %s: %s", e.URL, strings.Join(e.Violations, "; "))
}

func (e *ManifestError) Unwrap() error { return ErrManifestInvalid }

// ArgsError reports caller arguments rejected by a tool's parameter schema.
// Every violated field is listed, in declaration order, so an LLM (or a human)
// can correct all of them at once.
type ArgsError struct {
	Tool       string
	Violations []string
}

func (e *ArgsError) Error() string {
	return fmt.Sprintf("tool %q: invalid arguments: %s", e.Tool, strings.Join(e.Violations, "; "))
}

func (e *ArgsError) Unwrap() error { return ErrInvalidArgs }

// AuthError reports an invocation attempted while auth requirements are still
// outstanding. Missing lists every service that could satisfy them; no request
// is sent in this state.
type AuthError struct {
	Tool    string
	Missing []string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("tool %q: auth missing for services: %s", e.Tool, strings.Join(e.Missing, ", "))
}

func (e *AuthError) Unwrap() error { return ErrAuthIncomplete }

// UnusedKeysError reports caller-supplied auth token getters or bound
// parameters that no tool could use. Tool is set when one tool rejected them
// (LoadTool, strict toolsets, AddAuthTokenGetters); Toolset is set when a
// non-strict toolset found keys unused by every tool in the set.
type UnusedKeysError struct {
	Tool      string
	Toolset   string
	AuthKeys  []string
	BoundKeys []string
}

func (e *UnusedKeysError) Error() string {
	var parts []string

	if len(e.AuthKeys) > 0 {
		parts = append(parts, fmt.Sprintf("unused auth token getters: [%s]", strings.Join(e.AuthKeys, ", ")))
	}

	if len(e.BoundKeys) > 0 {
		parts = append(parts, fmt.Sprintf("unused bound parameters: [%s]", strings.Join(e.BoundKeys, ", ")))
	}

	scope := fmt.Sprintf("tool %q", e.Tool)
	if e.Tool == "" {
		scope = fmt.Sprintf("toolset %q", e.Toolset)
	}

	return scope + ": " + strings.Join(parts, "; ")
}

func (e *UnusedKeysError) Unwrap() error { return ErrUnusedKeys }

// IsAuthIncomplete returns true if err reports outstanding auth requirements.
func IsAuthIncomplete(err error) bool {
	return errors.Is(err, ErrAuthIncomplete)
}

// IsInvalidArgs returns true if err reports rejected caller arguments.
func IsInvalidArgs(err error) bool {
	return errors.Is(err, ErrInvalidArgs)
}
