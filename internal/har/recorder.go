package har

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"
)

// Recorder is an http.RoundTripper that appends every exchange passing
// through it to w as one JSON line.
type Recorder struct {
	mu       sync.Mutex
	w        io.Writer
	next     http.RoundTripper
	sanitize bool
	now      func() time.Time
	logger   *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithSanitize redacts credentials before entries are written.
func WithSanitize(enabled bool) RecorderOption {
	return func(r *Recorder) {
		r.sanitize = enabled
	}
}

// WithClock sets the source of entry timestamps.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithLogger sets the logger used to report write failures.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder wraps next and writes exchanges to w.
func NewRecorder(w io.Writer, next http.RoundTripper, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		w:      w,
		next:   next,
		now:    time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RoundTrip implements http.RoundTripper. A failed write is logged and
// never fails the request.
func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	started := r.now()

	var reqBody []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		reqBody, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	resp, err := r.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	entry := HAREntry{
		StartedDateTime: started,
		Request: HARRequest{
			Method:  req.Method,
			URL:     req.URL.String(),
			Headers: headersFrom(req.Header),
			Body:    string(reqBody),
		},
		Response: HARResponse{
			Status:  resp.StatusCode,
			Headers: headersFrom(resp.Header),
			Content: HARContent{
				MimeType: mimeType(resp.Header.Get("Content-Type")),
				Text:     string(respBody),
				Size:     len(respBody),
			},
		},
	}

	if r.sanitize {
		entry = sanitizeEntry(entry)
	}

	if err := r.write(entry); err != nil {
		r.logger.Warn("Failed to write diagnostic log entry", "url", req.URL.Path, "error", err)
	}

	return resp, nil
}

func (r *Recorder) write(entry HAREntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.w.Write(line)
	return err
}

func mimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mt
}
