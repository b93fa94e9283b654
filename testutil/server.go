// Package testutil provides test helpers for toolbox (e.g. a fake Toolbox
// server).
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Server is an in-memory Toolbox service double. Configure manifest bodies
// and per-tool invocation behavior, point a client at URL(), and assert on
// the recorded requests. Safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	tools    map[string]string // tool name -> manifest body
	toolsets map[string]string // toolset name -> manifest body
	results  map[string]any    // tool name -> invoke result
	failures map[string]failure
	requests []Request

	httpServer *httptest.Server
}

type failure struct {
	status int
	body   string
}

// Request is one recorded HTTP request.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// NewServer starts a fake Toolbox server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		tools:    make(map[string]string),
		toolsets: make(map[string]string),
		results:  make(map[string]any),
		failures: make(map[string]failure),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tool/{name}", s.handleTool)
	mux.HandleFunc("GET /api/toolset/{name}", s.handleToolset)
	mux.HandleFunc("GET /api/toolset/", s.handleToolset) // default toolset
	mux.HandleFunc("POST /api/tool/{name}/invoke", s.handleInvoke)

	s.httpServer = httptest.NewServer(mux)

	return s
}

// URL returns the server's base URL.
func (s *Server) URL() string { return s.httpServer.URL }

// Client returns an http.Client wired to the server. Its idle connections are
// closed by Close, which keeps goroutine leak checks quiet.
func (s *Server) Client() *http.Client { return s.httpServer.Client() }

// Close shuts the server down.
func (s *Server) Close() { s.httpServer.Close() }

// SetToolManifest sets the raw manifest body served for one tool. The body is
// served verbatim, valid or not.
func (s *Server) SetToolManifest(name, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools[name] = body
}

// SetToolsetManifest sets the raw manifest body served for a toolset. Use
// name "" for the default toolset.
func (s *Server) SetToolsetManifest(name, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.toolsets[name] = body
}

// SetResult sets the value returned (wrapped as {"result": ...}) when the
// named tool is invoked.
func (s *Server) SetResult(name string, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[name] = result
}

// SetFailure makes invocations of the named tool fail with the given status
// and raw response body.
func (s *Server) SetFailure(name string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[name] = failure{status: status, body: body}
}

// Requests returns a copy of every request recorded so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Request, len(s.requests))
	copy(out, s.requests)

	return out
}

// Count returns how many requests matched method and path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}

	return n
}

func (s *Server) record(r *http.Request) []byte {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})

	return body
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	s.record(r)

	s.mu.Lock()
	body, ok := s.tools[r.PathValue("name")]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "tool not found")
		return
	}

	writeJSON(w, body)
}

func (s *Server) handleToolset(w http.ResponseWriter, r *http.Request) {
	s.record(r)

	s.mu.Lock()
	body, ok := s.toolsets[r.PathValue("name")]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "toolset not found")
		return
	}

	writeJSON(w, body)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	name := r.PathValue("name")

	s.mu.Lock()
	f, failed := s.failures[name]
	result, ok := s.results[name]
	s.mu.Unlock()

	if failed {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)

		return
	}

	if !ok {
		result = "ok"
	}

	out, _ := json.Marshal(map[string]any{"result": result})
	writeJSON(w, string(out))
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	out, _ := json.Marshal(map[string]string{"error": msg})
	_, _ = w.Write(out)
}
