package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Route is a scripted answer for one method and path.
type Route struct {
	Status int
	Body   string
	Header http.Header
}

// CapturedRequest is what the backend saw of one call.
type CapturedRequest struct {
	Method  string
	Path    string
	Query   map[string][]string
	Header  http.Header
	Cookies []*http.Cookie
	Body    string
}

// Backend is an httptest server answering scripted routes and recording
// every request. Unscripted routes answer 200 with an empty JSON object.
type Backend struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]Route
	requests []CapturedRequest
}

func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{routes: make(map[string]Route)}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)

	return b
}

// Handle scripts the response for method and path (path is relative to
// the API version, e.g. "identification/logout").
func (b *Backend) Handle(method, path string, route Route) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.routes[method+" "+strings.TrimPrefix(path, "/")] = route
}

// BaseURI is the URI to hand to api.WithBaseURI.
func (b *Backend) BaseURI() string {
	return b.URL + "/api/"
}

func (b *Backend) Requests() []CapturedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]CapturedRequest(nil), b.requests...)
}

// Calls counts the requests seen for method and path.
func (b *Backend) Calls(method, path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	// Strip /api/<version>/ to get the API path.
	path := strings.TrimPrefix(r.URL.Path, "/api/")
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[i+1:]
	}

	b.mu.Lock()
	b.requests = append(b.requests, CapturedRequest{
		Method:  r.Method,
		Path:    path,
		Query:   r.URL.Query(),
		Header:  r.Header.Clone(),
		Cookies: r.Cookies(),
		Body:    string(body),
	})
	route, ok := b.routes[r.Method+" "+path]
	b.mu.Unlock()

	if !ok {
		route = Route{Status: http.StatusOK, Body: `{}`}
	}

	for name, values := range route.Header {
		w.Header()[name] = values
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}

	status := route.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, route.Body)
}
