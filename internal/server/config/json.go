package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. Fields absent from the file keep their current value.
type JsonConfig struct {
	EndpointAddrGRPC     string         `json:"endpoint_addr_grpc"`
	DatabaseDSN          string         `json:"database_dsn"`
	SecretKey            string         `json:"secret_key"`
	SessionTTL           timex.Duration `json:"session_ttl"`
	MaxFailedAttempts    int            `json:"max_failed_attempts"`
	LockoutDuration      timex.Duration `json:"lockout_duration"`
	ConfirmationTokenTTL timex.Duration `json:"confirmation_token_ttl"`
	ResetTokenTTL        timex.Duration `json:"reset_token_ttl"`
	BcryptCost           int            `json:"bcrypt_cost"`
	PublicBaseURL        string         `json:"public_base_url"`
	DefaultRole          string         `json:"default_role"`
	NotifyBackend        string         `json:"notify_backend"`
	NotifyQueueSize      int            `json:"notify_queue_size"`
	S3RootUser           string         `json:"s3_root_user"`
	S3RootPassword       string         `json:"s3_root_password"`
	S3Bucket             string         `json:"s3_bucket"`
	S3Region             string         `json:"s3_region"`
	S3BaseEndpoint       string         `json:"s3_base_endpoint"`
	SentryDSN            string         `json:"sentry_dsn"`
	Environment          string         `json:"environment"`
	LogLevel             string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by the
// -c or -config flag into config. Without the flag nothing is loaded.
// If the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.ConfigFile(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.SessionTTL, c.SessionTTL)
	setInt(&config.MaxFailedAttempts, c.MaxFailedAttempts)
	setDuration(&config.LockoutDuration, c.LockoutDuration)
	setDuration(&config.ConfirmationTokenTTL, c.ConfirmationTokenTTL)
	setDuration(&config.ResetTokenTTL, c.ResetTokenTTL)
	setInt(&config.BcryptCost, c.BcryptCost)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	setString(&config.DefaultRole, c.DefaultRole)
	setString(&config.NotifyBackend, c.NotifyBackend)
	setInt(&config.NotifyQueueSize, c.NotifyQueueSize)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.SentryDSN, c.SentryDSN)
	setString(&config.Environment, c.Environment)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
