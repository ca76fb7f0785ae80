package api_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grez-lucas/bankapi/internal/api"
	"github.com/grez-lucas/bankapi/internal/api/store"
	"github.com/grez-lucas/bankapi/internal/api/testutil"
)

// tokenFlow logs in with a one-time code the way the security token
// variants do.
type tokenFlow struct {
	persist bool
	err     error
}

func (f *tokenFlow) Name() string { return "token" }

func (f *tokenFlow) Login(ctx context.Context, a *api.Auth) error {
	if f.err != nil {
		return f.err
	}
	if f.persist {
		if err := a.EnablePersistence(); err != nil {
			return err
		}
	}
	_, err := a.Post(ctx, "identification/securitytoken", map[string]any{
		"useOneTimePassword": true,
		"password":           "123456",
	})
	return err
}

var testAppData = api.AppData{AppID: testAppID, UserAgent: testUserAgent}

func TestOpen_Authenticates(t *testing.T) {
	backend := testutil.NewBackend(t)

	a, err := api.Open(context.Background(), testAppData, &tokenFlow{},
		api.WithBaseURI(backend.BaseURI()),
		api.WithLogger(quietLogger),
	)
	require.NoError(t, err)

	assert.Equal(t, api.StateAuthenticated, a.State())
	assert.Equal(t, api.ProfileIndividual, a.ProfileType())
	assert.NotEmpty(t, a.AuthorizationKey())
	assert.Equal(t, 1, backend.Calls(http.MethodPost, "identification/securitytoken"))
}

func TestOpen_InvalidAppData(t *testing.T) {
	_, err := api.Open(context.Background(), api.AppData{AppID: "app"}, &tokenFlow{})
	assert.ErrorIs(t, err, api.ErrInvalidAppData)
}

func TestLogin_FlowError(t *testing.T) {
	backend := testutil.NewBackend(t)
	a := newAuth(t, backend)

	cause := errors.New("bankid cancelled")
	err := a.Login(context.Background(), &tokenFlow{err: cause})

	var authErr *api.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "token", authErr.Flow)
	assert.Equal(t, "Login", authErr.Operation)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, api.StateAuthenticating, a.State())
}

func TestLogin_RejectedChallengeTerminates(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Handle(http.MethodPost, "identification/securitytoken", testutil.Route{
		Status: http.StatusUnauthorized,
		Body:   `{"errorMessages":{"fields":[{"field":"password","message":"wrong"}]}}`,
	})
	a := newAuth(t, backend)

	err := a.Login(context.Background(), &tokenFlow{})
	require.Error(t, err)

	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, api.StateTerminated, a.State())
}

func TestLogin_WrongState(t *testing.T) {
	a := api.New(api.WithLogger(quietLogger))

	err := a.Login(context.Background(), &tokenFlow{})
	assert.ErrorIs(t, err, api.ErrInvalidState)
}

func TestTerminate_LogsOutAndCleansUp(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Handle(http.MethodPut, "identification/logout", testutil.Route{Body: `{"status":"LOGGED_OUT"}`})
	a := newAuth(t, backend)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, &tokenFlow{}))
	jar := a.CookieJar()

	result, err := a.Terminate(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"LOGGED_OUT"}`, string(result))

	assert.Equal(t, api.StateTerminated, a.State())
	assert.Equal(t, 0, jar.Len())
	assert.Nil(t, a.Client())
	assert.Nil(t, a.CookieJar())
}

func TestTerminate_CleansUpWhenLogoutRefused(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Handle(http.MethodPut, "identification/logout", testutil.Route{Status: http.StatusForbidden, Body: `{}`})
	a := newAuth(t, backend)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, &tokenFlow{}))

	_, err := a.Terminate(ctx)

	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, 1, backend.Calls(http.MethodPut, "identification/logout"), "a refused logout must not recurse")
	assert.Equal(t, api.StateTerminated, a.State())
	assert.Nil(t, a.Client())
}

func TestTerminate_CleansUpWhenBackendUnreachable(t *testing.T) {
	backend := testutil.NewBackend(t)
	a := newAuth(t, backend)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, &tokenFlow{}))
	backend.Close()

	_, err := a.Terminate(ctx)
	assert.Error(t, err)
	assert.Equal(t, api.StateTerminated, a.State())
	assert.Nil(t, a.Client())
}

func TestCleanup_Idempotent(t *testing.T) {
	backend := testutil.NewBackend(t)
	a := newAuth(t, backend)
	ctx := context.Background()

	a.Cleanup(ctx)

	_, err := a.Get(ctx, "profile/", nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		a.Cleanup(ctx)
		a.Cleanup(ctx)
	})
	assert.Nil(t, a.Client())
	assert.Nil(t, a.CookieJar())
}

func TestCleanup_RebuildsClientOnNextRequest(t *testing.T) {
	backend := testutil.NewBackend(t)
	a := newAuth(t, backend)
	ctx := context.Background()

	_, err := a.Get(ctx, "profile/", nil)
	require.NoError(t, err)
	first := a.Client()

	a.Cleanup(ctx)

	_, err = a.Get(ctx, "profile/", nil)
	require.NoError(t, err)
	assert.NotNil(t, a.Client())
	assert.NotSame(t, first, a.Client())
}

func TestEnablePersistence_WithoutStore(t *testing.T) {
	backend := testutil.NewBackend(t)
	a := newAuth(t, backend)

	err := a.EnablePersistence()
	assert.ErrorIs(t, err, api.ErrSessionUnavailable)
	assert.False(t, a.Persistent())

	err = a.SaveSession(context.Background())
	assert.ErrorIs(t, err, api.ErrSessionUnavailable)
}

func TestPersistence_RoundTrip(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Handle(http.MethodPost, "identification/securitytoken", testutil.Route{
		Body:   `{}`,
		Header: http.Header{"Set-Cookie": {"JSESSIONID=kept; Path=/"}},
	})
	sessions := store.NewMemory()
	ctx := context.Background()

	a, err := api.Open(ctx, testAppData, &tokenFlow{persist: true},
		api.WithBaseURI(backend.BaseURI()),
		api.WithSessionStore(sessions),
		api.WithLogger(quietLogger),
	)
	require.NoError(t, err)
	require.True(t, a.Persistent())

	restored, err := api.Restore(ctx, sessions,
		api.WithBaseURI(backend.BaseURI()),
		api.WithLogger(quietLogger),
	)
	require.NoError(t, err)

	assert.Equal(t, a.Record(), restored.Record())
	assert.Equal(t, testAppID, restored.Identity().AppID)
	assert.Equal(t, testUserAgent, restored.Identity().UserAgent)
	assert.Equal(t, a.AuthorizationKey(), restored.AuthorizationKey())
	assert.Equal(t, a.ProfileType(), restored.ProfileType())
	assert.True(t, restored.Persistent())
	assert.Equal(t, api.StateAuthenticated, restored.State())

	assert.Nil(t, restored.Client(), "client is rebuilt lazily")
	assert.Nil(t, restored.CookieJar(), "cookie jar is rebuilt lazily")

	_, err = restored.Get(ctx, "profile/", nil)
	require.NoError(t, err)

	last := backend.Requests()[len(backend.Requests())-1]
	assert.Equal(t, a.AuthorizationKey(), last.Header.Get("Authorization"))

	var session string
	for _, c := range last.Cookies {
		if c.Name == "JSESSIONID" {
			session = c.Value
		}
	}
	assert.Equal(t, "kept", session, "stored cookies come back with the jar")
}

func TestPersistence_RoundTripDebugSession(t *testing.T) {
	backend := testutil.NewBackend(t)
	sessions := store.NewMemory()
	ctx := context.Background()

	var log bytes.Buffer
	_, err := api.Open(ctx, testAppData, &tokenFlow{persist: true},
		api.WithBaseURI(backend.BaseURI()),
		api.WithSessionStore(sessions),
		api.WithDebugLog(&log),
		api.WithLogger(quietLogger),
	)
	require.NoError(t, err)
	require.NotZero(t, log.Len())

	restore := func(t *testing.T, opts ...api.Option) *api.Auth {
		t.Helper()
		opts = append([]api.Option{api.WithBaseURI(backend.BaseURI()), api.WithLogger(quietLogger)}, opts...)
		a, err := api.Restore(ctx, sessions, opts...)
		require.NoError(t, err)
		return a
	}

	t.Run("default log file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		a := restore(t)
		assert.True(t, a.Record().Debug)

		_, err := a.Get(ctx, "profile/", nil)
		require.NoError(t, err)

		data, err := os.ReadFile(api.DefaultDebugLogPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), "/api/v4/profile/")
	})

	t.Run("configured log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "debug.log")
		a := restore(t, api.WithDebugLogPath(path))

		_, err := a.Get(ctx, "profile/", nil)
		require.NoError(t, err)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	})

	t.Run("debug turned off", func(t *testing.T) {
		a := restore(t, api.WithDebug(false), api.WithDebugLogPath(""))
		assert.False(t, a.Record().Debug)

		_, err := a.Get(ctx, "profile/", nil)
		require.NoError(t, err)
		assert.NotNil(t, a.Client())
	})
}

func TestPersistence_CleanupRemovesStoredSession(t *testing.T) {
	backend := testutil.NewBackend(t)
	sessions := store.NewMemory()
	ctx := context.Background()

	a, err := api.Open(ctx, testAppData, &tokenFlow{persist: true},
		api.WithBaseURI(backend.BaseURI()),
		api.WithSessionStore(sessions),
		api.WithLogger(quietLogger),
	)
	require.NoError(t, err)

	_, err = sessions.Load(ctx, api.AuthSessionKey)
	require.NoError(t, err)

	_, err = a.Terminate(ctx)
	require.NoError(t, err)

	_, err = sessions.Load(ctx, api.AuthSessionKey)
	assert.ErrorIs(t, err, api.ErrSessionNotFound)
	_, err = sessions.Load(ctx, api.CookieJarSessionKey)
	assert.ErrorIs(t, err, api.ErrSessionNotFound)

	_, err = api.Restore(ctx, sessions)
	assert.ErrorIs(t, err, api.ErrSessionNotFound)
}

func TestPersistence_MemorySessionNotStored(t *testing.T) {
	backend := testutil.NewBackend(t)
	sessions := store.NewMemory()
	ctx := context.Background()

	_, err := api.Open(ctx, testAppData, &tokenFlow{},
		api.WithBaseURI(backend.BaseURI()),
		api.WithSessionStore(sessions),
		api.WithLogger(quietLogger),
	)
	require.NoError(t, err)

	_, err = sessions.Load(ctx, api.AuthSessionKey)
	assert.ErrorIs(t, err, api.ErrSessionNotFound)
}

func TestRestore_NoStore(t *testing.T) {
	_, err := api.Restore(context.Background(), nil)
	assert.ErrorIs(t, err, api.ErrSessionUnavailable)
}

func TestRestore_CorruptRecord(t *testing.T) {
	sessions := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, sessions.Save(ctx, api.AuthSessionKey, []byte(`{"appID":""}`)))

	_, err := api.Restore(ctx, sessions)
	assert.ErrorIs(t, err, api.ErrInvalidAppData)
}

func TestSessionRecord_ExcludesLiveState(t *testing.T) {
	record := api.SessionRecord{
		AppID:            testAppID,
		UserAgent:        testUserAgent,
		AuthorizationKey: "key",
		ProfileType:      api.ProfileCorporate,
		Debug:            true,
		Persistent:       true,
	}

	data, err := record.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, string(testutil.LoadFixture(t, "session_record")), string(data))

	parsed, err := api.ParseSessionRecord(data)
	require.NoError(t, err)
	assert.Equal(t, record, parsed)
}
