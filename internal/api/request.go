package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const jsonContentType = "application/json; charset=UTF-8"

// Request is one call to the API, with Path relative to the base URL.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Get sends a GET with optional query parameters.
func (a *Auth) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	req, err := a.buildRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return a.dispatch(ctx, req, query)
}

// Post sends a POST. A string or []byte body is sent as is; any other
// non-nil body is encoded as JSON with a JSON Content-Type.
func (a *Auth) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	req, err := a.buildRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	return a.dispatch(ctx, req, nil)
}

// Put sends a PUT without a body.
func (a *Auth) Put(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := a.buildRequest(ctx, http.MethodPut, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return a.dispatch(ctx, req, nil)
}

// Delete sends a DELETE without a body.
func (a *Auth) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := a.buildRequest(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return a.dispatch(ctx, req, nil)
}

func (a *Auth) buildRequest(ctx context.Context, method, path string, header http.Header, body any) (*Request, error) {
	// Only the logout call may go out once the session has ended.
	if a.state == StateTerminated && !a.terminating {
		return nil, fmt.Errorf("%w: %s %s in state %s", ErrInvalidState, method, path, a.state)
	}

	if err := a.ensureClient(ctx); err != nil {
		return nil, err
	}

	req := &Request{
		Method: method,
		Path:   path,
		Header: make(http.Header),
	}
	for name, values := range header {
		req.Header[name] = values
	}

	if method != http.MethodPost || body == nil {
		return req, nil
	}

	switch b := body.(type) {
	case string:
		req.Body = []byte(b)
	case []byte:
		req.Body = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		req.Body = data
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", jsonContentType)
		}
	}

	return req, nil
}

// dispatch sends req with a fresh dsid. A 5xx cleans the session up and
// returns an authenticated Auth to Authenticating; a 4xx terminates it.
// Either way the APIError is returned.
func (a *Auth) dispatch(ctx context.Context, req *Request, query url.Values) (json.RawMessage, error) {
	dsid := newDSID()
	a.jar.Set(&http.Cookie{Name: "dsid", Value: dsid, Path: "/"})

	params := make(url.Values, len(query)+1)
	for k, v := range query {
		params[k] = append([]string(nil), v...)
	}
	params.Set("dsid", dsid)

	target, err := a.resolve(req.Path, params)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", req.Method, req.Path, err)
	}
	for name, values := range req.Header {
		httpReq.Header[name] = values
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", req.Method, req.Path, err)
	}

	if resp.StatusCode >= 400 {
		return nil, a.fail(ctx, &APIError{
			StatusCode: resp.StatusCode,
			Body:       data,
			Method:     req.Method,
			Path:       req.Path,
		})
	}

	if a.jar != nil {
		if err := a.jar.Save(ctx); err != nil {
			a.logger.Warn("Failed to persist cookie jar", "error", err)
		}
	}

	return decodeJSON(data)
}

func (a *Auth) fail(ctx context.Context, apiErr *APIError) error {
	a.logger.Warn("API request failed",
		"method", apiErr.Method,
		"path", apiErr.Path,
		"status", apiErr.StatusCode,
	)

	switch {
	case apiErr.IsServerError():
		a.Cleanup(ctx)
		// The session is gone; Login may run again on this Auth.
		if !a.terminating && a.state == StateAuthenticated {
			a.state = StateAuthenticating
		}
	case a.terminating:
		// The logout call itself was refused.
		a.Cleanup(ctx)
	default:
		_, _ = a.Terminate(ctx)
	}

	return apiErr
}

func (a *Auth) resolve(path string, query url.Values) (string, error) {
	base, err := url.Parse(a.BaseURL())
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}

	u := base.ResolveReference(ref)

	merged := u.Query()
	for k, v := range query {
		merged[k] = v
	}
	u.RawQuery = merged.Encode()

	return u.String(), nil
}

func decodeJSON(data []byte) (json.RawMessage, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("null"), nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &DecodeError{Body: data, Cause: err}
	}

	return json.RawMessage(data), nil
}
