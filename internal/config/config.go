// Package config loads server settings from a YAML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"openbis/internal/blob"
	"openbis/internal/core"
)

// Config holds every server setting.
type Config struct {
	InstanceCode string             `yaml:"instance_code"`
	AdminUserID  string             `yaml:"admin_user_id"`
	HTTP         HTTPConfig         `yaml:"http"`
	Storage      core.StorageConfig `yaml:"storage"`
	Blob         blob.Config        `yaml:"blob"`
	Exports      ExportsConfig      `yaml:"exports"`
	Logging      LoggingConfig      `yaml:"logging"`
	Auth         AuthConfig         `yaml:"auth"`
	SessionTTL   string             `yaml:"session_ttl"`
}

// AuthMode selects how Login checks passwords.
type AuthMode string

const (
	// AuthUsers checks passwords against configured bcrypt hashes.
	AuthUsers AuthMode = "users"
	// AuthAcceptAll trusts every login, for servers behind an
	// authenticating proxy.
	AuthAcceptAll AuthMode = "accept_all"
)

// AuthConfig lists the users allowed to log in. Users maps user ids to
// bcrypt hashes; UsersFile is a YAML file of the same shape whose entries
// win over Users.
type AuthConfig struct {
	Mode      AuthMode          `yaml:"mode"`
	Users     map[string]string `yaml:"users"`
	UsersFile string            `yaml:"users_file"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// ExportsConfig sizes the asynchronous export worker. Finished exports are
// dropped, artifact included, once Retention has passed.
type ExportsConfig struct {
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
	Retention string `yaml:"retention"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		InstanceCode: "OPENBIS",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: "10s",
		},
		Storage: core.StorageConfig{
			Driver:     core.StorageSQLite,
			SQLitePath: "openbis.db",
		},
		Blob: blob.Config{
			Driver: blob.DriverFilesystem,
			FSRoot: "blobs",
		},
		Exports:    ExportsConfig{Workers: 2, QueueSize: 64, Retention: "24h"},
		Logging:    LoggingConfig{Level: "info"},
		Auth:       AuthConfig{Mode: AuthUsers},
		SessionTTL: core.DefaultSessionTTL.String(),
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnvOverrides(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides(getenv func(string) string) error {
	set := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set("OPENBIS_INSTANCE_CODE", &c.InstanceCode)
	set("OPENBIS_ADMIN_USER", &c.AdminUserID)
	set("OPENBIS_HTTP_ADDR", &c.HTTP.Addr)
	set("OPENBIS_LOG_LEVEL", &c.Logging.Level)
	set("OPENBIS_SESSION_TTL", &c.SessionTTL)
	set("OPENBIS_AUTH_USERS_FILE", &c.Auth.UsersFile)
	set("OPENBIS_SQLITE_PATH", &c.Storage.SQLitePath)
	set("OPENBIS_POSTGRES_DSN", &c.Storage.PostgresDSN)
	set("OPENBIS_BLOB_FS_ROOT", &c.Blob.FSRoot)
	set("OPENBIS_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	set("OPENBIS_BLOB_S3_REGION", &c.Blob.S3.Region)
	set("OPENBIS_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	set("OPENBIS_BLOB_S3_PREFIX", &c.Blob.S3.Prefix)
	set("OPENBIS_BLOB_S3_ACCESS_KEY_ID", &c.Blob.S3.AccessKeyID)
	set("OPENBIS_BLOB_S3_SECRET_ACCESS_KEY", &c.Blob.S3.SecretAccessKey)
	if v := getenv("OPENBIS_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = core.StorageDriver(v)
	}
	if v := getenv("OPENBIS_AUTH_MODE"); v != "" {
		c.Auth.Mode = AuthMode(v)
	}
	if v := getenv("OPENBIS_BLOB_DRIVER"); v != "" {
		c.Blob.Driver = blob.Driver(v)
	}
	if v := getenv("OPENBIS_BLOB_S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OPENBIS_BLOB_S3_PATH_STYLE: %w", err)
		}
		c.Blob.S3.PathStyle = b
	}
	return nil
}

// Validate checks values that cannot be checked by decoding alone.
func (c *Config) Validate() error {
	if _, err := c.SessionTTLDuration(); err != nil {
		return err
	}
	if _, err := c.ShutdownTimeout(); err != nil {
		return err
	}
	if c.Exports.Workers < 1 {
		return fmt.Errorf("exports.workers must be positive, got %d", c.Exports.Workers)
	}
	if c.Exports.QueueSize < 1 {
		return fmt.Errorf("exports.queue_size must be positive, got %d", c.Exports.QueueSize)
	}
	if _, err := c.ExportRetention(); err != nil {
		return err
	}
	switch c.Auth.Mode {
	case "", AuthUsers, AuthAcceptAll:
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	switch c.Storage.Driver {
	case "", core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// Authenticator builds the password check for Login. In users mode it
// fails when no user is configured, so a server never falls back to
// accepting every password.
func (c *Config) Authenticator() (core.Authenticator, error) {
	if c.Auth.Mode == AuthAcceptAll {
		return core.AcceptAllAuthenticator{}, nil
	}
	users := make(core.PasswordHashAuthenticator, len(c.Auth.Users))
	maps.Copy(users, c.Auth.Users)
	if c.Auth.UsersFile != "" {
		data, err := os.ReadFile(c.Auth.UsersFile)
		if err != nil {
			return nil, fmt.Errorf("read auth users file: %w", err)
		}
		var fromFile map[string]string
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("parse auth users file %s: %w", c.Auth.UsersFile, err)
		}
		maps.Copy(users, fromFile)
	}
	if len(users) == 0 {
		return nil, errors.New("auth: no users configured; set auth.users or auth.users_file, or auth.mode: accept_all behind an authenticating proxy")
	}
	for id, hash := range users {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("auth: password hash of %s: %w", id, err)
		}
	}
	return users, nil
}

// SessionTTLDuration parses the session idle timeout.
func (c *Config) SessionTTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("session_ttl: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("session_ttl must be positive, got %s", d)
	}
	return d, nil
}

// ShutdownTimeout parses the graceful shutdown timeout.
func (c *Config) ShutdownTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.HTTP.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("http.shutdown_timeout: %w", err)
	}
	return d, nil
}

// ExportRetention parses exports.retention.
func (c *Config) ExportRetention() (time.Duration, error) {
	d, err := time.ParseDuration(c.Exports.Retention)
	if err != nil {
		return 0, fmt.Errorf("exports.retention: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("exports.retention must be positive, got %s", d)
	}
	return d, nil
}
