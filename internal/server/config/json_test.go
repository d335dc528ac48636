package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_grpc":     "www.example:9000",
		"database_dsn":           "postgres://json",
		"secret_key":             "my_secret_key",
		"session_ttl":            "12h",
		"max_failed_attempts":    3,
		"lockout_duration":       "5m",
		"confirmation_token_ttl": "48h",
		"reset_token_ttl":        "30m",
		"bcrypt_cost":            10,
		"public_base_url":        "https://id.example.com",
		"default_role":           "reader",
		"notify_backend":         "s3",
		"notify_queue_size":      16,
		"s3_root_user":           "user",
		"s3_root_password":       "password",
		"s3_bucket":              "bucket",
		"s3_region":              "region",
		"s3_base_endpoint":       "base_endpoint",
		"sentry_dsn":             "https://key@sentry.example/1",
		"environment":            "production",
		"log_level":              "debug",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres://json", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
		assert.Equal(t, 3, cfg.MaxFailedAttempts)
		assert.Equal(t, 5*time.Minute, cfg.LockoutDuration)
		assert.Equal(t, 48*time.Hour, cfg.ConfirmationTokenTTL)
		assert.Equal(t, 30*time.Minute, cfg.ResetTokenTTL)
		assert.Equal(t, 10, cfg.BcryptCost)
		assert.Equal(t, "https://id.example.com", cfg.PublicBaseURL)
		assert.Equal(t, "reader", cfg.DefaultRole)
		assert.Equal(t, "s3", cfg.NotifyBackend)
		assert.Equal(t, 16, cfg.NotifyQueueSize)
		assert.Equal(t, "user", cfg.S3RootUser)
		assert.Equal(t, "password", cfg.S3RootPassword)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
		assert.Equal(t, "https://key@sentry.example/1", cfg.SentryDSN)
		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("partial json keeps other values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{"secret_key": "only-this"})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "only-this", cfg.SecretKey)
		assert.Equal(t, ":50051", cfg.EndpointAddrGRPC)
		assert.Equal(t, 15*time.Minute, cfg.LockoutDuration)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddrGRPC: "defaults:1234",
			DatabaseDSN:      "postgres://defaults",
			SecretKey:        "key",
			SessionTTL:       2 * time.Minute,
			S3Bucket:         "s3bucket",
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres://defaults", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 2*time.Minute, cfg.SessionTTL)
		assert.Equal(t, "s3bucket", cfg.S3Bucket)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(dir, "absent.json")}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
