package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"
)

// Auth is one authenticated session with the backend. It is not safe for
// concurrent use; one caller drives it at a time.
type Auth struct {
	identity      AppIdentity
	authorization string
	state         State

	baseURI    string
	apiVersion string

	debug        bool
	debugLogPath string
	debugLog     io.Writer
	debugFile    io.Closer

	persistent bool
	store      SessionStore

	transport http.RoundTripper
	base      http.RoundTripper
	client    *http.Client
	jar       *CookieJar

	logger *slog.Logger
	clock  clockwork.Clock

	terminating bool
}

// New returns an unauthenticated Auth.
func New(opts ...Option) *Auth {
	a := &Auth{
		state:        StateUnauthenticated,
		baseURI:      DefaultBaseURI,
		apiVersion:   DefaultAPIVersion,
		debugLogPath: DefaultDebugLogPath,
		logger:       slog.Default(),
		clock:        clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Open validates the app data, generates an authorization key and runs
// flow. It is the usual way into an authenticated session.
func Open(ctx context.Context, data AppData, flow AuthFlow, opts ...Option) (*Auth, error) {
	a := New(opts...)

	if err := a.SetAppIdentity(data); err != nil {
		return nil, err
	}

	if err := a.Login(ctx, flow); err != nil {
		return nil, err
	}

	return a, nil
}

// SetAppIdentity validates data and moves the Auth to Authenticating.
func (a *Auth) SetAppIdentity(data AppData) error {
	if a.state != StateUnauthenticated {
		return fmt.Errorf("%w: set app identity in state %s", ErrInvalidState, a.state)
	}

	identity, err := newAppIdentity(data)
	if err != nil {
		return err
	}

	a.identity = identity
	a.state = StateAuthenticating
	a.logger.Debug("App identity set", "app_id", identity.AppID, "profile", identity.ProfileType)

	return nil
}

// SetAuthorizationKey adopts key verbatim, or generates a new one when key
// is empty. The next request carries the new key.
func (a *Auth) SetAuthorizationKey(key string) {
	if key == "" {
		key = GenerateAuthorizationKey(a.identity.AppID)
	}
	a.authorization = key
}

// SetBaseURI overrides the API server URI, excluding the version segment.
func (a *Auth) SetBaseURI(uri string) {
	a.baseURI = uri
}

// Login runs flow against this session. On success the Auth is
// Authenticated and, when persistence is on, the session is saved.
func (a *Auth) Login(ctx context.Context, flow AuthFlow) error {
	if a.state != StateAuthenticating {
		return fmt.Errorf("%w: login in state %s", ErrInvalidState, a.state)
	}

	if a.authorization == "" {
		a.SetAuthorizationKey("")
	}

	if err := flow.Login(ctx, a); err != nil {
		return &AuthError{Flow: flow.Name(), Operation: "Login", Cause: err}
	}

	// A 4xx during the flow terminates the session.
	if a.state == StateTerminated {
		return &AuthError{Flow: flow.Name(), Operation: "Login", Cause: fmt.Errorf("%w: session terminated", ErrInvalidState)}
	}

	a.state = StateAuthenticated
	a.logger.Info("Authenticated", "flow", flow.Name(), "profile", a.identity.ProfileType)

	if a.persistent {
		if err := a.SaveSession(ctx); err != nil {
			return &AuthError{Flow: flow.Name(), Operation: "SaveSession", Cause: err}
		}
	}

	return nil
}

// Terminate logs out, then releases the session whether or not the logout
// call succeeded. The logout result is returned as is.
func (a *Auth) Terminate(ctx context.Context) (json.RawMessage, error) {
	a.terminating = true
	defer func() { a.terminating = false }()

	result, err := a.Put(ctx, "identification/logout")
	if err != nil {
		a.logger.Warn("Logout failed", "error", err)
	}

	a.Cleanup(ctx)
	a.state = StateTerminated
	a.logger.Info("Session terminated")

	return result, err
}

// Cleanup clears every cookie, releases the HTTP client and, for persistent
// sessions, removes the stored session. It is safe to call repeatedly.
func (a *Auth) Cleanup(ctx context.Context) {
	if a.jar != nil {
		a.jar.Clear()
		a.jar = nil
	}

	a.releaseClient()

	if a.persistent && a.store != nil {
		for _, key := range []string{AuthSessionKey, CookieJarSessionKey} {
			if err := a.store.Delete(ctx, key); err != nil {
				a.logger.Warn("Failed to delete stored session", "key", key, "error", err)
			}
		}
	}
}

// State reports where the session is in its lifecycle.
func (a *Auth) State() State {
	return a.state
}

// ProfileType is the profile derived from the app's user agent.
func (a *Auth) ProfileType() ProfileType {
	return a.identity.ProfileType
}

// Identity returns the validated app identity.
func (a *Auth) Identity() AppIdentity {
	return a.identity
}

// AuthorizationKey returns the key sent in the Authorization header.
func (a *Auth) AuthorizationKey() string {
	return a.authorization
}

// Client returns the live HTTP client, or nil before the first request
// and after cleanup.
func (a *Auth) Client() *http.Client {
	return a.client
}

// CookieJar returns the live cookie jar, or nil when no client exists.
func (a *Auth) CookieJar() *CookieJar {
	return a.jar
}

// BaseURL is the URI requests are resolved against.
func (a *Auth) BaseURL() string {
	base := a.baseURI
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.Trim(a.apiVersion, "/") + "/"
}
