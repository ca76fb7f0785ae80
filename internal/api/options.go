package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/grez-lucas/bankapi/internal/config"
)

const (
	DefaultBaseURI    = "https://auth.api.swedbank.se/TDE_DAP_Portal_REST_WEB/api/"
	DefaultAPIVersion = "v4"

	// DefaultDebugLogPath is where diagnostic entries go unless another
	// sink is configured.
	DefaultDebugLogPath = "bankapi.log"
)

// Option configures an Auth.
type Option func(*Auth)

// WithBaseURI overrides the API server URI, excluding the version segment.
func WithBaseURI(uri string) Option {
	return func(a *Auth) {
		a.baseURI = uri
	}
}

// WithAPIVersion overrides the version path segment.
func WithAPIVersion(version string) Option {
	return func(a *Auth) {
		a.apiVersion = version
	}
}

// WithSessionStore sets the store used by persistent sessions.
func WithSessionStore(store SessionStore) Option {
	return func(a *Auth) {
		a.store = store
	}
}

// WithDebug turns on diagnostic logging of every exchange. Entries are
// appended to DefaultDebugLogPath unless WithDebugLogPath or WithDebugLog
// names another sink.
func WithDebug(enabled bool) Option {
	return func(a *Auth) {
		a.debug = enabled
	}
}

// WithDebugLogPath appends diagnostic entries to the file at path. An empty
// path leaves debug without a sink.
func WithDebugLogPath(path string) Option {
	return func(a *Auth) {
		a.debugLogPath = path
	}
}

// WithDebugLog writes diagnostic entries to w and enables debug.
func WithDebugLog(w io.Writer) Option {
	return func(a *Auth) {
		a.debug = true
		a.debugLog = w
	}
}

// WithTransport replaces the network transport under the client.
func WithTransport(rt http.RoundTripper) Option {
	return func(a *Auth) {
		a.transport = rt
	}
}

// WithLogger sets the logger for lifecycle events and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auth) {
		a.logger = logger
	}
}

// WithClock sets the clock used for cookie expiry and diagnostic timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(a *Auth) {
		a.clock = clock
	}
}

// WithConfig applies the endpoint and diagnostics settings of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(a *Auth) {
		if cfg.BaseURI != "" {
			a.baseURI = cfg.BaseURI
		}
		if cfg.APIVersion != "" {
			a.apiVersion = cfg.APIVersion
		}
		a.debug = cfg.Debug
		if cfg.DebugLog != "" {
			a.debugLogPath = cfg.DebugLog
		}
	}
}
