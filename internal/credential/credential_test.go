package credential

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	apperrors "github.com/ramkansal/taglift/pkg/errors"
	"github.com/ramkansal/taglift/pkg/plugin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	zkr "github.com/zalando/go-keyring"
)

var alice = plugin.Credentials{Username: "alice", Token: "tok-123"}

// exerciseStore checks the contract every backend shares.
func exerciseStore(t *testing.T, s plugin.CredentialStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, plugin.ErrNoCredentials)

	require.NoError(t, s.Save(ctx, alice))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	bob := plugin.Credentials{Username: "bob", Token: "tok-456"}
	require.NoError(t, s.Save(ctx, bob))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, bob, got)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, plugin.ErrNoCredentials)

	require.NoError(t, s.Clear(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestKeyringStore(t *testing.T) {
	zkr.MockInit()
	exerciseStore(t, NewKeyring("taglift-test"))
}

func newRedisStore(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s, err := NewRedis(client, "taglift-test", ttl, nil)
	require.NoError(t, err)
	return s, mr
}

func TestRedisStore(t *testing.T) {
	s, _ := newRedisStore(t, 0)
	exerciseStore(t, s)
}

func TestRedisStoreExpires(t *testing.T) {
	s, mr := newRedisStore(t, 30*time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, alice))
	assert.Equal(t, 30*time.Minute, mr.TTL("taglift-test:credentials"))

	mr.FastForward(20 * time.Minute)
	_, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, mr.TTL("taglift-test:credentials"))

	mr.FastForward(31 * time.Minute)
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, plugin.ErrNoCredentials)
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	_, err := NewRedis(client, "", 0, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStore))
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{Backend: BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Keyring{}, s)

	mr := miniredis.RunT(t)
	s, err = Open(Config{Backend: BackendRedis, RedisHost: mr.Host(), RedisPort: mustPort(t, mr)}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, s)

	_, err = Open(Config{Backend: "etcd"}, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}
