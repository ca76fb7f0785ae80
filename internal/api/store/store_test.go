package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grez-lucas/bankapi/internal/api"
	"github.com/grez-lucas/bankapi/internal/api/store"
	"github.com/grez-lucas/bankapi/internal/api/testutil"
	"github.com/grez-lucas/bankapi/internal/config"
)

// exerciseStore runs the behaviour every SessionStore must share.
func exerciseStore(t *testing.T, s api.SessionStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, api.AuthSessionKey)
	require.ErrorIs(t, err, api.ErrSessionNotFound)

	require.NoError(t, s.Save(ctx, api.AuthSessionKey, []byte(`{"appID":"a"}`)))
	data, err := s.Load(ctx, api.AuthSessionKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"appID":"a"}`, string(data))

	require.NoError(t, s.Save(ctx, api.AuthSessionKey, []byte(`{"appID":"b"}`)))
	data, err = s.Load(ctx, api.AuthSessionKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"appID":"b"}`, string(data), "save overwrites")

	require.NoError(t, s.Save(ctx, api.CookieJarSessionKey, []byte(`[]`)))

	require.NoError(t, s.Delete(ctx, api.AuthSessionKey))
	_, err = s.Load(ctx, api.AuthSessionKey)
	assert.ErrorIs(t, err, api.ErrSessionNotFound)

	_, err = s.Load(ctx, api.CookieJarSessionKey)
	assert.NoError(t, err, "deleting one key leaves the others")

	assert.NoError(t, s.Delete(ctx, api.AuthSessionKey), "deleting a missing key is not an error")
}

func TestMemory(t *testing.T) {
	exerciseStore(t, store.NewMemory())
}

func TestMemory_CopiesData(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	data := []byte(`{"appID":"a"}`)
	require.NoError(t, s.Save(ctx, "k", data))
	data[2] = 'X'

	got, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"appID":"a"}`, string(got))
}

func TestFile(t *testing.T) {
	s, err := store.NewFile(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)

	exerciseStore(t, s)
}

func TestFile_Layout(t *testing.T) {
	dir := t.TempDir()
	s, err := store.NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), api.AuthSessionKey, []byte(`{}`)))

	info, err := os.Stat(filepath.Join(dir, api.AuthSessionKey+".json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestFile_RejectsPathTraversal(t *testing.T) {
	s, err := store.NewFile(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"../escape", "a/b", ""} {
		assert.Error(t, s.Save(ctx, id, []byte(`{}`)), id)
		_, err := s.Load(ctx, id)
		assert.Error(t, err, id)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, closer, err := store.Open(ctx, &config.Config{SessionStore: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, s)
	assert.NoError(t, closer.Close())

	s, closer, err = store.Open(ctx, &config.Config{SessionStore: config.StoreFile, SessionDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &store.File{}, s)
	assert.NoError(t, closer.Close())

	_, _, err = store.Open(ctx, &config.Config{SessionStore: config.StoreRedis, RedisURL: "not a url"})
	assert.Error(t, err)

	_, _, err = store.Open(ctx, &config.Config{SessionStore: "etcd"})
	assert.ErrorContains(t, err, "etcd")
}

// Integration test: requires a reachable Redis at REDIS_URL.
func TestRedis_Integration(t *testing.T) {
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	opts, err := goredis.ParseURL(redisURL)
	require.NoError(t, err)
	rdb := goredis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	s := store.NewRedis(rdb, time.Minute)
	t.Cleanup(func() {
		_ = s.Delete(ctx, api.AuthSessionKey)
		_ = s.Delete(ctx, api.CookieJarSessionKey)
	})

	exerciseStore(t, s)

	require.NoError(t, s.Save(ctx, api.AuthSessionKey, []byte(`{}`)))
	ttl, err := rdb.TTL(ctx, "bankapi:session:"+api.AuthSessionKey).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}
