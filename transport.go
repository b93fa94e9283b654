package toolbox

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// loggingTransport logs every round trip at debug level: method, URL, status,
// and duration. Request and response bodies are not logged; they may carry
// credentials or user data.
type loggingTransport struct {
	base   http.RoundTripper
	logger zerolog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.base.RoundTrip(req)

	evt := t.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Dur("duration", time.Since(start))

	if err != nil {
		evt.Err(err).Msg("round trip failed")
		return nil, err
	}

	evt.Int("status", resp.StatusCode).Msg("round trip")

	return resp, nil
}
