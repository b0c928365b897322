// Package credential persists the username and token used to authorize
// deliveries. Three backends exist: the OS keychain (persistent), Redis
// (session-scoped, expires after a TTL) and process memory.
package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/ramkansal/taglift/pkg/errors"
	"github.com/ramkansal/taglift/pkg/plugin"
	"github.com/redis/go-redis/v9"
	zkr "github.com/zalando/go-keyring"
	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendKeyring = "keyring"
	BackendRedis   = "redis"
	BackendMemory  = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Backend    string
	Service    string
	RedisHost  string
	RedisPort  int
	RedisPass  string
	RedisDB    int
	SessionTTL time.Duration
}

// Open returns the store named by cfg.Backend.
func Open(cfg Config, logger *zap.Logger) (plugin.CredentialStore, error) {
	switch cfg.Backend {
	case BackendKeyring, "":
		return NewKeyring(cfg.Service), nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
			Password:     cfg.RedisPass,
			DB:           cfg.RedisDB,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		return NewRedis(client, cfg.Service, cfg.SessionTTL, logger)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, apperrors.NewValidationError("unknown credential backend", "backend", cfg.Backend)
	}
}

// ---------- keyring ----------

const (
	defaultService = "taglift"
	usernameKey    = "username"
	tokenKey       = "token"
)

// Keyring keeps credentials in the OS keychain.
type Keyring struct {
	service string
}

func NewKeyring(service string) *Keyring {
	if service == "" {
		service = defaultService
	}
	return &Keyring{service: service}
}

func (k *Keyring) Load(context.Context) (plugin.Credentials, error) {
	username, err := zkr.Get(k.service, usernameKey)
	if err == zkr.ErrNotFound {
		return plugin.Credentials{}, plugin.ErrNoCredentials
	}
	if err != nil {
		return plugin.Credentials{}, apperrors.NewStoreError("keychain get failed", "load", err)
	}
	token, err := zkr.Get(k.service, tokenKey)
	if err == zkr.ErrNotFound {
		return plugin.Credentials{}, plugin.ErrNoCredentials
	}
	if err != nil {
		return plugin.Credentials{}, apperrors.NewStoreError("keychain get failed", "load", err)
	}
	return plugin.Credentials{Username: username, Token: token}, nil
}

func (k *Keyring) Save(_ context.Context, creds plugin.Credentials) error {
	if err := zkr.Set(k.service, usernameKey, creds.Username); err != nil {
		return apperrors.NewStoreError("keychain set failed", "save", err)
	}
	if err := zkr.Set(k.service, tokenKey, creds.Token); err != nil {
		return apperrors.NewStoreError("keychain set failed", "save", err)
	}
	return nil
}

func (k *Keyring) Clear(context.Context) error {
	for _, key := range []string{usernameKey, tokenKey} {
		if err := zkr.Delete(k.service, key); err != nil && err != zkr.ErrNotFound {
			return apperrors.NewStoreError("keychain delete failed", "clear", err)
		}
	}
	return nil
}

// ---------- redis ----------

// Redis keeps credentials in a single key that expires after ttl. Every
// successful Load refreshes the expiry.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis pings client before returning the store.
func NewRedis(client *redis.Client, service string, ttl time.Duration, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if service == "" {
		service = defaultService
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, apperrors.NewStoreError("failed to connect to Redis", "ping", err)
	}

	logger.Info("Redis connected", zap.String("addr", client.Options().Addr), zap.Duration("ttl", ttl))
	return &Redis{client: client, key: service + ":credentials", ttl: ttl, logger: logger}, nil
}

func (r *Redis) Load(ctx context.Context) (plugin.Credentials, error) {
	value, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return plugin.Credentials{}, plugin.ErrNoCredentials
	}
	if err != nil {
		r.logger.Error("Credential load failed", zap.Error(err))
		return plugin.Credentials{}, apperrors.NewStoreError("get failed", "load", err)
	}

	var creds plugin.Credentials
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return plugin.Credentials{}, apperrors.NewStoreError("unmarshal failed", "load", err)
	}
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, r.key, r.ttl).Err(); err != nil {
			r.logger.Warn("Credential TTL refresh failed", zap.Error(err))
		}
	}
	return creds, nil
}

func (r *Redis) Save(ctx context.Context, creds plugin.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return apperrors.NewStoreError("marshal failed", "save", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		r.logger.Error("Credential save failed", zap.Error(err))
		return apperrors.NewStoreError("set failed", "save", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return apperrors.NewStoreError("delete failed", "clear", err)
	}
	return nil
}

// ---------- memory ----------

// Memory keeps credentials for the life of the process.
type Memory struct {
	mu    sync.RWMutex
	creds plugin.Credentials
	set   bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(context.Context) (plugin.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return plugin.Credentials{}, plugin.ErrNoCredentials
	}
	return m.creds, nil
}

func (m *Memory) Save(_ context.Context, creds plugin.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
	m.set = true
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = plugin.Credentials{}
	m.set = false
	return nil
}
