package api

import (
	"encoding/base64"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upperUUID = regexp.MustCompile(`^[0-9A-F]{8}-[0-9A-F]{4}-4[0-9A-F]{3}-[89AB][0-9A-F]{3}-[0-9A-F]{12}$`)

func TestGenerateAuthorizationKey_Format(t *testing.T) {
	for _, appID := range []string{"HithYAGrzi8fu73j", "abc", "with:colon"} {
		key := GenerateAuthorizationKey(appID)

		raw, err := base64.StdEncoding.DecodeString(key)
		require.NoError(t, err)

		prefix, id, ok := strings.Cut(string(raw)[len(appID):], ":")
		require.True(t, ok)
		assert.Empty(t, prefix)
		assert.True(t, strings.HasPrefix(string(raw), appID+":"))
		assert.Len(t, id, 36)
		assert.Regexp(t, upperUUID, id)
	}
}

func TestGenerateAuthorizationKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 500 {
		key := GenerateAuthorizationKey("app")
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}

func TestSetAuthorizationKey(t *testing.T) {
	a := New()
	require.NoError(t, a.SetAppIdentity(AppData{AppID: "app", UserAgent: "ua"}))

	a.SetAuthorizationKey("issued-earlier")
	assert.Equal(t, "issued-earlier", a.AuthorizationKey())

	a.SetAuthorizationKey("")
	raw, err := base64.StdEncoding.DecodeString(a.AuthorizationKey())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "app:"))
}
