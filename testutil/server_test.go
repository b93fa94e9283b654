package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, srv *Server, path string) (int, string) {
	t.Helper()

	resp, err := srv.Client().Get(srv.URL() + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestServer_ServesToolManifest(t *testing.T) {
	srv := NewServer()
	defer srv.Close()

	srv.SetToolManifest("echo", `{"serverVersion": "1", "tools": {}}`)

	status, body := get(t, srv, "/api/tool/echo")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"serverVersion": "1", "tools": {}}`, body)

	status, body = get(t, srv, "/api/tool/unknown")
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"error": "tool not found"}`, body)
}

func TestServer_ServesToolsetManifest(t *testing.T) {
	srv := NewServer()
	defer srv.Close()

	srv.SetToolsetManifest("", `{"serverVersion": "1", "tools": {}}`)
	srv.SetToolsetManifest("crud", `{"serverVersion": "2", "tools": {}}`)

	status, body := get(t, srv, "/api/toolset/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"serverVersion": "1"`)

	status, body = get(t, srv, "/api/toolset/crud")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"serverVersion": "2"`)

	status, _ = get(t, srv, "/api/toolset/unknown")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_Invoke(t *testing.T) {
	srv := NewServer()
	defer srv.Close()

	post := func(name, payload string) (int, string) {
		resp, err := srv.Client().Post(srv.URL()+"/api/tool/"+name+"/invoke", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		return resp.StatusCode, string(body)
	}

	status, body := post("anything", `{}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"result": "ok"}`, body)

	srv.SetResult("rows", []string{"a", "b"})
	status, body = post("rows", `{}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"result": ["a", "b"]}`, body)

	srv.SetFailure("rows", http.StatusBadRequest, `{"error": "bad"}`)
	status, body = post("rows", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error": "bad"}`, body)
}

func TestServer_RecordsRequests(t *testing.T) {
	srv := NewServer()
	defer srv.Close()

	srv.SetToolManifest("echo", `{"serverVersion": "1", "tools": {}}`)

	req, err := http.NewRequest(http.MethodGet, srv.URL()+"/api/tool/echo", nil)
	require.NoError(t, err)
	req.Header.Set("X-App", "demo")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	payload, err := json.Marshal(map[string]any{"x": 1})
	require.NoError(t, err)

	resp, err = srv.Client().Post(srv.URL()+"/api/tool/echo/invoke", "application/json", strings.NewReader(string(payload)))
	require.NoError(t, err)
	resp.Body.Close()

	reqs := srv.Requests()
	require.Len(t, reqs, 2)

	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "/api/tool/echo", reqs[0].Path)
	assert.Equal(t, "demo", reqs[0].Header.Get("X-App"))

	assert.Equal(t, http.MethodPost, reqs[1].Method)
	assert.Equal(t, "/api/tool/echo/invoke", reqs[1].Path)
	assert.JSONEq(t, `{"x": 1}`, string(reqs[1].Body))

	assert.Equal(t, 1, srv.Count(http.MethodPost, "/api/tool/echo/invoke"))
	assert.Equal(t, 0, srv.Count(http.MethodDelete, "/api/tool/echo"))
}
