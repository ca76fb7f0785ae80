package api

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestHeaderTransport_SetsFixedHeaders(t *testing.T) {
	a := New(WithBaseURI("https://bank.example/api/"))
	require.NoError(t, a.SetAppIdentity(AppData{AppID: "app", UserAgent: "SwedbankMOBCorporateIOS/4.9.0"}))
	a.SetAuthorizationKey("key")

	var seen http.Header
	rt := &headerTransport{auth: a, next: capture(&seen)}

	req, err := http.NewRequest(http.MethodGet, "https://bank.example/api/v4/profile/", nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "key", seen.Get("Authorization"))
	assert.Equal(t, "*/*", seen.Get("Accept"))
	assert.Equal(t, "sv-se", seen.Get("Accept-Language"))
	assert.Equal(t, "gzip, deflate", seen.Get("Accept-Encoding"))
	assert.Equal(t, "keep-alive", seen.Get("Connection"))
	assert.Equal(t, "keep-alive", seen.Get("Proxy-Connection"))
	assert.Equal(t, "SwedbankMOBCorporateIOS/4.9.0", seen.Get("User-Agent"))
	assert.Equal(t, "application/json; charset=UTF-8", seen.Get("Content-Type"))

	assert.Empty(t, req.Header.Get("Authorization"), "caller's request must not be mutated")
}

func capture(seen *http.Header) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		*seen = req.Header
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}")), Header: http.Header{}}, nil
	})
}

func TestHeaderTransport_ReadsKeyPerRequest(t *testing.T) {
	a := New(WithBaseURI("https://bank.example/api/"))
	require.NoError(t, a.SetAppIdentity(AppData{AppID: "app", UserAgent: "SwedbankMOBPrivateIOS/4.9.0"}))
	a.SetAuthorizationKey("first")

	var seen http.Header
	rt := &headerTransport{auth: a, next: capture(&seen)}

	req, err := http.NewRequest(http.MethodGet, "https://bank.example/api/v4/profile/", nil)
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "first", seen.Get("Authorization"))

	a.SetAuthorizationKey("second")
	_, err = rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "second", seen.Get("Authorization"))
}

func TestHeaderTransport_KeyOnlyForAPIHost(t *testing.T) {
	a := New(WithBaseURI("https://bank.example/api/"))
	require.NoError(t, a.SetAppIdentity(AppData{AppID: "app", UserAgent: "SwedbankMOBPrivateIOS/4.9.0"}))
	a.SetAuthorizationKey("key")

	var seen http.Header
	rt := &headerTransport{auth: a, next: capture(&seen)}

	req, err := http.NewRequest(http.MethodGet, "https://elsewhere.example/landing", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "leaked")

	_, err = rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Empty(t, seen.Get("Authorization"))
	assert.Equal(t, "SwedbankMOBPrivateIOS/4.9.0", seen.Get("User-Agent"))
}

func TestDecompressTransport_Deflate(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"deflated":true}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	rt := &decompressTransport{
		next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Encoding": {"deflate"}},
				Body:       io.NopCloser(bytes.NewReader(buf.Bytes())),
			}, nil
		}),
	}

	req, err := http.NewRequest(http.MethodGet, "https://bank.example/", nil)
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.JSONEq(t, `{"deflated":true}`, string(body))
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}

func TestDecompressTransport_CorruptBody(t *testing.T) {
	rt := &decompressTransport{
		next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Encoding": {"gzip"}},
				Body:       io.NopCloser(strings.NewReader("not gzip")),
			}, nil
		}),
	}

	req, err := http.NewRequest(http.MethodGet, "https://bank.example/", nil)
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	assert.ErrorContains(t, err, "decode gzip body")
}

func TestCheckRedirect_Limit(t *testing.T) {
	next, err := http.NewRequest(http.MethodGet, "https://bank.example/next", nil)
	require.NoError(t, err)

	var via []*http.Request
	for i := range maxRedirects {
		prev, err := http.NewRequest(http.MethodGet, "https://bank.example/hop/"+string(rune('a'+i)), nil)
		require.NoError(t, err)
		via = append(via, prev)
	}

	assert.NoError(t, checkRedirect(next, via[:maxRedirects-1]))
	assert.Equal(t, "https://bank.example/hop/i", next.Header.Get("Referer"))

	assert.Error(t, checkRedirect(next, via))
}

func TestDefaultTransport_SkipsVerification(t *testing.T) {
	tr, ok := defaultTransport().(*http.Transport)
	require.True(t, ok)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
	assert.True(t, tr.DisableCompression)
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURI+"v4/", New().BaseURL())
	assert.Equal(t, "https://example.test/api/v5/", New(WithBaseURI("https://example.test/api"), WithAPIVersion("v5")).BaseURL())
}
