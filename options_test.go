package toolbox

import (
	"context"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestClientOptions(t *testing.T) {
	hc := &http.Client{}

	c, err := NewClient("http://server",
		WithHTTPClient(hc),
		WithLogger(zerolog.Nop()),
		WithClientHeaders(map[string]any{"X-App": "demo", "X-Env": "test"}),
		WithClientHeader("X-Env", "prod"),
	)
	require.NoError(t, err)

	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, "demo", c.clientHeaders["X-App"])
	assert.Equal(t, "prod", c.clientHeaders["X-Env"], "later options win")
}

func TestNewToolConfig_Defaults(t *testing.T) {
	cfg := newToolConfig(nil)

	assert.NotNil(t, cfg.AuthTokenGetters)
	assert.NotNil(t, cfg.BoundParams)
	assert.Empty(t, cfg.AuthTokenGetters)
	assert.Empty(t, cfg.BoundParams)
	assert.False(t, cfg.Strict)
}

func TestToolOptions_Merge(t *testing.T) {
	cfg := newToolConfig([]ToolOption{
		WithAuthTokenGetters(map[string]TokenGetter{
			"google": StaticToken("g1"),
			"github": StaticToken("h1"),
		}),
		WithAuthTokenGetter("google", StaticToken("g2")),
		WithBoundParams(map[string]any{"region": "eu", "limit": 10}),
		WithBoundParam("limit", 20),
		WithStrict(true),
	})

	require.Len(t, cfg.AuthTokenGetters, 2)

	tok, err := cfg.AuthTokenGetters["google"](context.Background())
	require.NoError(t, err)
	assert.Equal(t, "g2", tok, "later options win")

	assert.Equal(t, map[string]any{"region": "eu", "limit": 20}, cfg.BoundParams)
	assert.True(t, cfg.Strict)
}

func TestWithAuthTokenSources(t *testing.T) {
	cfg := newToolConfig([]ToolOption{
		WithAuthTokenSources(map[string]oauth2.TokenSource{
			"google": oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "id-token"}),
		}),
	})

	require.Contains(t, cfg.AuthTokenGetters, "google")

	tok, err := cfg.AuthTokenGetters["google"](context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id-token", tok)
}
