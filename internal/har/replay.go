package har

import (
	"bytes"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// volatileParams are query parameters that change on every request and
// are ignored when matching.
var volatileParams = []string{"dsid"}

// Replayer is an http.RoundTripper that serves recorded responses. Entries
// are matched by method and URL without volatile parameters, falling back
// to method and path. Repeated requests to the same key consume the
// recorded entries in order; the last one is served again once exhausted.
type Replayer struct {
	mu sync.Mutex

	exactMatches map[string][]*HAREntry
	pathMatches  map[string][]*HAREntry
	served       map[string]int

	passthrough http.RoundTripper
	verbose     bool
	logger      *slog.Logger
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithPassthrough sends unmatched requests through next instead of
// answering 404.
func WithPassthrough(next http.RoundTripper) ReplayerOption {
	return func(r *Replayer) {
		r.passthrough = next
	}
}

// WithVerbose enables logging of request matching.
func WithVerbose(enabled bool) ReplayerOption {
	return func(r *Replayer) {
		r.verbose = enabled
	}
}

// NewReplayer creates a replayer from a HAR log.
func NewReplayer(har *HARLog, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		exactMatches: make(map[string][]*HAREntry),
		pathMatches:  make(map[string][]*HAREntry),
		served:       make(map[string]int),
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	for i := range har.Entries {
		entry := &har.Entries[i]

		parsed, err := url.Parse(entry.Request.URL)
		if err != nil {
			continue
		}

		exact := exactKey(entry.Request.Method, parsed)
		r.exactMatches[exact] = append(r.exactMatches[exact], entry)

		path := pathKey(entry.Request.Method, parsed)
		r.pathMatches[path] = append(r.pathMatches[path], entry)
	}

	return r
}

// RoundTrip implements http.RoundTripper.
func (r *Replayer) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		_, _ = io.Copy(io.Discard, req.Body)
		_ = req.Body.Close()
	}

	entry, found := r.lookup(req.Method, req.URL)
	if !found {
		if r.verbose {
			r.logger.Info("[replayer] no match", "method", req.Method, "url", req.URL.String())
		}

		if r.passthrough != nil {
			return r.passthrough.RoundTrip(req)
		}

		return r.notFound(req), nil
	}

	if r.verbose {
		r.logger.Info("[replayer] matched", "method", req.Method, "url", req.URL.String(), "status", entry.Response.Status)
	}

	return r.recordedResponse(req, entry), nil
}

func (r *Replayer) lookup(method string, u *url.URL) (*HAREntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, candidate := range []struct {
		scope string
		key   string
		index map[string][]*HAREntry
	}{
		{"exact", exactKey(method, u), r.exactMatches},
		{"path", pathKey(method, u), r.pathMatches},
	} {
		entries := candidate.index[candidate.key]
		if len(entries) == 0 {
			continue
		}

		servedKey := candidate.scope + " " + candidate.key
		n := r.served[servedKey]
		r.served[servedKey] = n + 1
		if n >= len(entries) {
			n = len(entries) - 1
		}
		return entries[n], true
	}

	return nil, false
}

func (r *Replayer) recordedResponse(req *http.Request, entry *HAREntry) *http.Response {
	resp := entry.Response

	var body []byte
	if resp.Content.Encoding == "base64" {
		var err error
		body, err = base64.StdEncoding.DecodeString(resp.Content.Text)
		if err != nil {
			body = []byte(resp.Content.Text)
		}
	} else {
		body = []byte(resp.Content.Text)
	}

	header := make(http.Header)
	for _, h := range resp.Headers {
		name := strings.ToLower(h.Name)
		// Bodies are stored decoded.
		if name == "content-encoding" || name == "content-length" {
			continue
		}
		header.Add(h.Name, h.Value)
	}
	if header.Get("Content-Type") == "" && resp.Content.MimeType != "" {
		header.Set("Content-Type", resp.Content.MimeType)
	}

	return &http.Response{
		Status:        http.StatusText(resp.Status),
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func (r *Replayer) notFound(req *http.Request) *http.Response {
	body := []byte(`{"error": "no recording found for URL"}`)

	return &http.Response{
		Status:        http.StatusText(http.StatusNotFound),
		StatusCode:    http.StatusNotFound,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// Stats returns statistics about the replayer's index.
func (r *Replayer) Stats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return map[string]int{
		"exact_matches": len(r.exactMatches),
		"path_matches":  len(r.pathMatches),
	}
}

func exactKey(method string, u *url.URL) string {
	query := u.Query()
	for _, p := range volatileParams {
		query.Del(p)
	}
	return method + " " + u.Scheme + "://" + u.Host + u.Path + "?" + query.Encode()
}

func pathKey(method string, u *url.URL) string {
	return method + " " + u.Scheme + "://" + u.Host + u.Path
}
