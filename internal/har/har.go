// Package har captures and replays HTTP exchanges with the bank backend in
// a simplified HAR (HTTP Archive) format. Diagnostic logs are written as
// one JSON entry per line so they can be appended to across runs.
package har

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"
)

// HARLog represents a simplified HAR log.
type HARLog struct {
	Entries []HAREntry `json:"entries"`
}

// HAREntry represents a single HTTP request/response pair.
type HAREntry struct {
	StartedDateTime time.Time   `json:"startedDateTime,omitzero"`
	Request         HARRequest  `json:"request"`
	Response        HARResponse `json:"response"`
}

// HARRequest represents an HTTP request.
type HARRequest struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Headers []HARHeader `json:"headers,omitempty"`
	Body    string      `json:"body,omitempty"`
}

// HARResponse represents an HTTP response.
type HARResponse struct {
	Status  int         `json:"status"`
	Headers []HARHeader `json:"headers,omitempty"`
	Content HARContent  `json:"content"`
}

// HARHeader represents an HTTP header key-value pair.
type HARHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HARContent represents the response body content.
type HARContent struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
	Encoding string `json:"encoding,omitempty"` // "base64" if binary content
	Size     int    `json:"size,omitempty"`
}

// ChromeHAR is the HAR 1.2 format exported by browser dev tools and
// proxies, which wraps entries in a "log" object and uses postData
// instead of body.
type ChromeHAR struct {
	Log ChromeHARLog `json:"log"`
}

type ChromeHARLog struct {
	Version string           `json:"version"`
	Entries []ChromeHAREntry `json:"entries"`
}

type ChromeHAREntry struct {
	StartedDateTime time.Time        `json:"startedDateTime,omitzero"`
	Request         ChromeHARRequest `json:"request"`
	Response        HARResponse      `json:"response"`
}

type ChromeHARRequest struct {
	Method   string       `json:"method"`
	URL      string       `json:"url"`
	Headers  []HARHeader  `json:"headers,omitempty"`
	PostData *HARPostData `json:"postData,omitempty"`
}

type HARPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// LoadHAR reads a HAR file from the given path. It accepts the HAR 1.2
// format with a "log" wrapper, the simplified format, and JSON lines as
// written by Recorder.
func LoadHAR(path string) (*HARLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read HAR file: %w", err)
	}

	return ParseHAR(data)
}

// ParseHAR is LoadHAR for data already in memory.
func ParseHAR(data []byte) (*HARLog, error) {
	var chromeHAR ChromeHAR
	if err := json.Unmarshal(data, &chromeHAR); err == nil && len(chromeHAR.Log.Entries) > 0 {
		return convertChromeHAR(&chromeHAR), nil
	}

	var har HARLog
	if err := json.Unmarshal(data, &har); err == nil && len(har.Entries) > 0 {
		return &har, nil
	}

	return parseLines(data)
}

func parseLines(data []byte) (*HARLog, error) {
	har := &HARLog{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var entry HAREntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("parse HAR line %d: %w", line, err)
		}
		har.Entries = append(har.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan HAR lines: %w", err)
	}

	return har, nil
}

func convertChromeHAR(chrome *ChromeHAR) *HARLog {
	entries := make([]HAREntry, len(chrome.Log.Entries))

	for i, ce := range chrome.Log.Entries {
		var body string
		if ce.Request.PostData != nil {
			body = ce.Request.PostData.Text
		}

		entries[i] = HAREntry{
			StartedDateTime: ce.StartedDateTime,
			Request: HARRequest{
				Method:  ce.Request.Method,
				URL:     ce.Request.URL,
				Headers: ce.Request.Headers,
				Body:    body,
			},
			Response: ce.Response,
		}
	}

	return &HARLog{Entries: entries}
}

// SaveHAR writes a HAR log to the given path with pretty formatting.
func SaveHAR(path string, har *HARLog) error {
	data, err := json.MarshalIndent(har, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal HAR: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write HAR file: %w", err)
	}

	return nil
}

func headersFrom(h http.Header) []HARHeader {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []HARHeader
	for _, name := range names {
		for _, v := range h[name] {
			out = append(out, HARHeader{Name: name, Value: v})
		}
	}
	return out
}
