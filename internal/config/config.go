package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	API        APIConfig
	Server     ServerConfig
	Browser    BrowserConfig
	Credential CredentialConfig
	Redis      RedisConfig
	Session    SessionConfig
	Trigger    TriggerConfig
	Archive    ArchiveConfig
	Logging    LoggingConfig
}

type APIConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxAttempts    int
	Proxy          string
}

type ServerConfig struct {
	ListenAddr string
}

type BrowserConfig struct {
	Headless bool
	Timeout  time.Duration
	Bin      string
}

type CredentialConfig struct {
	Backend string
	Service string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type SessionConfig struct {
	TTL                    time.Duration
	ImmediateBypassesGuard bool
	CheckDuplicates        bool
}

type TriggerConfig struct {
	ProfilePattern string
	MinGap         time.Duration
	MaxPerSession  int
}

type ArchiveConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
	File  string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		API: APIConfig{
			BaseURL:        getEnv("TAGLIFT_API_BASE", "http://localhost:3000/api"),
			RequestTimeout: time.Duration(getEnvInt("TAGLIFT_REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
			MaxAttempts:    getEnvInt("TAGLIFT_MAX_ATTEMPTS", 3),
			Proxy:          getEnv("TAGLIFT_PROXY", ""),
		},
		Server: ServerConfig{
			ListenAddr: getEnv("TAGLIFT_LISTEN_ADDR", "127.0.0.1:8787"),
		},
		Browser: BrowserConfig{
			Headless: getEnvBool("TAGLIFT_HEADLESS", false),
			Timeout:  time.Duration(getEnvInt("TAGLIFT_BROWSER_TIMEOUT_SECONDS", 30)) * time.Second,
			Bin:      getEnv("TAGLIFT_BROWSER_BIN", ""),
		},
		Credential: CredentialConfig{
			Backend: getEnv("TAGLIFT_CREDENTIAL_BACKEND", "keyring"),
			Service: getEnv("TAGLIFT_CREDENTIAL_SERVICE", "taglift"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			TTL:                    time.Duration(getEnvInt("TAGLIFT_SESSION_TTL_MINUTES", 480)) * time.Minute,
			ImmediateBypassesGuard: getEnvBool("TAGLIFT_IMMEDIATE_BYPASSES_GUARD", false),
			CheckDuplicates:        getEnvBool("TAGLIFT_CHECK_DUPLICATES", true),
		},
		Trigger: TriggerConfig{
			ProfilePattern: getEnv("TAGLIFT_PROFILE_PATTERN", `linkedin\.com/in/`),
			MinGap:         time.Duration(getEnvInt("TAGLIFT_MIN_TRIGGER_GAP_SECONDS", 60)) * time.Second,
			MaxPerSession:  getEnvInt("TAGLIFT_MAX_TRIGGERS", 20),
		},
		Archive: ArchiveConfig{
			Path: getEnv("TAGLIFT_ARCHIVE_PATH", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("TAGLIFT_API_BASE is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("TAGLIFT_API_BASE must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.MaxAttempts < 1 {
		return fmt.Errorf("TAGLIFT_MAX_ATTEMPTS must be at least 1")
	}
	switch c.Credential.Backend {
	case "keyring", "redis", "memory":
	default:
		return fmt.Errorf("TAGLIFT_CREDENTIAL_BACKEND must be keyring, redis or memory, got %q", c.Credential.Backend)
	}
	if c.Credential.Backend == "redis" && c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required for the redis credential backend")
	}
	if _, err := regexp.Compile(c.Trigger.ProfilePattern); err != nil {
		return fmt.Errorf("TAGLIFT_PROFILE_PATTERN: %w", err)
	}
	if c.Trigger.MaxPerSession < 1 {
		return fmt.Errorf("TAGLIFT_MAX_TRIGGERS must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
