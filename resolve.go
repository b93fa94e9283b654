package toolbox

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// resolveValue produces the concrete value behind v at invocation time.
// A non-function value passes through unchanged, nil included. Function values
// of the supported forms below are invoked fresh on every call and are never
// memoized, so a stateful provider observes its own updates between
// invocations. A function of any other shape is treated as a literal.
func resolveValue(ctx context.Context, v any) (any, error) {
	switch fn := v.(type) {
	case func(context.Context) (any, error):
		return fn(ctx)
	case func() (any, error):
		return fn()
	case func() any:
		return fn(), nil
	case func(context.Context) (string, error):
		return fn(ctx)
	case func() (string, error):
		return fn()
	case TokenGetter:
		return fn(ctx)
	default:
		return v, nil
	}
}

// resolveParams resolves every value in src concurrently. All resolutions
// complete before the result is returned; the first failure cancels the
// remaining ones through the group context and is returned with the offending
// key named. src is not mutated.
func resolveParams(ctx context.Context, src map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(src))
	if len(src) == 0 {
		return out, nil
	}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for name, raw := range src {
		g.Go(func() error {
			val, err := resolveValue(gctx, raw)
			if err != nil {
				return fmt.Errorf("resolve %q: %w", name, err)
			}

			mu.Lock()
			out[name] = val
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// resolveHeaders resolves header providers and enforces the wire contract:
// every header must resolve to a string. A non-string resolution is a
// configuration error naming the offending header.
func resolveHeaders(ctx context.Context, src map[string]any) (map[string]string, error) {
	resolved, err := resolveParams(ctx, src)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(resolved))
	for name, v := range resolved {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("header %q resolved to %T, want string", name, v)
		}
		out[name] = s
	}

	return out, nil
}

// resolveTokens fetches a token from every getter concurrently, keyed by the
// auth service name. Failures name the service.
func resolveTokens(ctx context.Context, getters map[string]TokenGetter) (map[string]string, error) {
	out := make(map[string]string, len(getters))
	if len(getters) == 0 {
		return out, nil
	}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for service, getter := range getters {
		g.Go(func() error {
			tok, err := getter(gctx)
			if err != nil {
				return fmt.Errorf("auth service %q: %w", service, err)
			}

			mu.Lock()
			out[service] = tok
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// omitNil returns a copy of payload without nil-valued keys. Optional
// parameters a caller explicitly set to nil are dropped here rather than sent
// as JSON null.
func omitNil(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		out[k] = v
	}

	return out
}
