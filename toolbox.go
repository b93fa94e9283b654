package toolbox

import (
	"context"
	"slices"

	"golang.org/x/oauth2"
)

// TokenGetter produces a fresh bearer token for one auth service. It is called
// on every invocation (and every manifest fetch, when used as a client header
// provider); implementations that talk to a credential backend should cache
// internally. The returned token is sent verbatim, without a "Bearer " prefix,
// in the "<service>_token" request header.
type TokenGetter func(ctx context.Context) (string, error)

// StaticToken returns a TokenGetter that always yields token. Intended for
// tests and for tokens with a lifetime longer than the process.
func StaticToken(token string) TokenGetter {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// TokenSourceGetter adapts an oauth2.TokenSource into a TokenGetter.
// The source's AccessToken is used verbatim; refresh and caching stay the
// source's responsibility.
func TokenSourceGetter(src oauth2.TokenSource) TokenGetter {
	return func(context.Context) (string, error) {
		tok, err := src.Token()
		if err != nil {
			return "", err
		}
		return tok.AccessToken, nil
	}
}

// sortedKeys returns the keys of m in sorted order, for deterministic
// iteration and stable error messages.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return keys
}
