package har

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// SensitivePatterns match keys whose values must not leave the machine.
var SensitivePatterns = []string{
	`(?i)password`,
	`(?i)passwd`,
	`(?i)secret`,
	`(?i)personal_?number`,
	`(?i)user_?id`,

	`(?i)token`,
	`(?i)session`,
	`(?i)auth`,
	`(?i)bearer`,
	`(?i)^dsid$`,

	`(?i)api_?key`,
	`(?i)credential`,
}

// SensitiveHeaders are headers that are always redacted.
var SensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-auth-token":        true,
	"x-api-key":           true,
	"x-session-id":        true,
	"x-csrf-token":        true,
	"proxy-authorization": true,
}

var (
	keyPatterns      = compile("%s")
	jsonStringFields = compile(`("[^"]*%s[^"]*")\s*:\s*"[^"]*"`)
	jsonOtherFields  = compile(`("[^"]*%s[^"]*")\s*:\s*([^",}\]\s]+)`)
)

func compile(format string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(SensitivePatterns))
	for _, p := range SensitivePatterns {
		flags := ""
		if strings.HasPrefix(p, "(?i)") {
			flags, p = "(?i)", strings.TrimPrefix(p, "(?i)")
		}
		if format != "%s" {
			p = strings.Trim(p, "^$")
		}
		out = append(out, regexp.MustCompile(flags+strings.Replace(format, "%s", p, 1)))
	}
	return out
}

// SanitizeHAR redacts sensitive data from a HAR log.
// Returns a new HARLog with sensitive data replaced by [REDACTED].
func SanitizeHAR(har *HARLog) *HARLog {
	sanitized := &HARLog{
		Entries: make([]HAREntry, len(har.Entries)),
	}

	for i, entry := range har.Entries {
		sanitized.Entries[i] = sanitizeEntry(entry)
	}

	return sanitized
}

func sanitizeEntry(entry HAREntry) HAREntry {
	return HAREntry{
		StartedDateTime: entry.StartedDateTime,
		Request: HARRequest{
			Method:  entry.Request.Method,
			URL:     sanitizeURL(entry.Request.URL),
			Headers: sanitizeHeaders(entry.Request.Headers),
			Body:    sanitizeBody(entry.Request.Body),
		},
		Response: HARResponse{
			Status:  entry.Response.Status,
			Headers: sanitizeHeaders(entry.Response.Headers),
			Content: HARContent{
				MimeType: entry.Response.Content.MimeType,
				Text:     sanitizeBody(entry.Response.Content.Text),
				Encoding: entry.Response.Content.Encoding,
				Size:     entry.Response.Content.Size,
			},
		},
	}
}

func sanitizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	query := parsed.Query()
	for key := range query {
		if isSensitiveKey(key) {
			query.Set(key, redacted)
		}
	}
	parsed.RawQuery = query.Encode()

	return parsed.String()
}

func sanitizeHeaders(headers []HARHeader) []HARHeader {
	if headers == nil {
		return nil
	}

	sanitized := make([]HARHeader, len(headers))
	for i, h := range headers {
		if SensitiveHeaders[strings.ToLower(h.Name)] || isSensitiveKey(h.Name) {
			sanitized[i] = HARHeader{Name: h.Name, Value: redacted}
			continue
		}
		sanitized[i] = h
	}

	return sanitized
}

func sanitizeBody(body string) string {
	if body == "" {
		return body
	}

	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return sanitizeJSONBody(body)
	}

	if strings.Contains(body, "=") {
		return sanitizeFormBody(body)
	}

	return body
}

func sanitizeFormBody(body string) string {
	values, err := url.ParseQuery(body)
	if err != nil {
		return body
	}

	for key := range values {
		if isSensitiveKey(key) {
			values.Set(key, redacted)
		}
	}

	return values.Encode()
}

func sanitizeJSONBody(body string) string {
	result := body

	for i := range jsonStringFields {
		result = jsonStringFields[i].ReplaceAllString(result, `$1: "`+redacted+`"`)
		result = jsonOtherFields[i].ReplaceAllString(result, `$1: "`+redacted+`"`)
	}

	return result
}

func isSensitiveKey(key string) bool {
	for _, re := range keyPatterns {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}
