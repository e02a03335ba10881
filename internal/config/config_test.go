package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/bcrypt"

	"openbis/internal/blob"
	"openbis/internal/core"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("defaults (-want +got):\n%s", diff)
	}
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openbis.yaml")
	data := []byte(`
instance_code: CISD
http:
  addr: ":9000"
storage:
  driver: memory
blob:
  driver: s3
  s3:
    bucket: attachments
    region: eu-central-1
exports:
  workers: 4
session_ttl: 30m
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENBIS_HTTP_ADDR", ":9100")
	t.Setenv("OPENBIS_BLOB_S3_PATH_STYLE", "true")
	t.Setenv("OPENBIS_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.InstanceCode != "CISD" || cfg.HTTP.Addr != ":9100" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Storage.Driver != core.StorageMemory {
		t.Fatalf("storage driver = %q", cfg.Storage.Driver)
	}
	wantBlob := blob.Config{
		Driver: blob.DriverS3,
		FSRoot: "blobs",
		S3:     blob.S3Config{Bucket: "attachments", Region: "eu-central-1", PathStyle: true},
	}
	if diff := cmp.Diff(wantBlob, cfg.Blob); diff != "" {
		t.Fatalf("blob config (-want +got):\n%s", diff)
	}
	if cfg.Exports.Workers != 4 || cfg.Exports.QueueSize != 64 {
		t.Fatalf("exports = %+v", cfg.Exports)
	}
	if retention, err := cfg.ExportRetention(); err != nil || retention != 24*time.Hour {
		t.Fatalf("export retention = %v, %v", retention, err)
	}
	ttl, err := cfg.SessionTTLDuration()
	if err != nil || ttl != 30*time.Minute {
		t.Fatalf("session ttl = %v, %v", ttl, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad ttl", func(c *Config) { c.SessionTTL = "soon" }},
		{"negative ttl", func(c *Config) { c.SessionTTL = "-1m" }},
		{"no workers", func(c *Config) { c.Exports.Workers = 0 }},
		{"no queue", func(c *Config) { c.Exports.QueueSize = 0 }},
		{"bad retention", func(c *Config) { c.Exports.Retention = "soon" }},
		{"zero retention", func(c *Config) { c.Exports.Retention = "0s" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = core.StoragePostgres }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "oracle" }},
		{"unknown auth mode", func(c *Config) { c.Auth.Mode = "ldap" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected a validation error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestEnvironmentRejectsBadBoolean(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnvOverrides(func(key string) string {
		if key == "OPENBIS_BLOB_S3_PATH_STYLE" {
			return "maybe"
		}
		return ""
	})
	if err == nil {
		t.Fatalf("expected an error for a malformed boolean")
	}
}

func TestAuthenticator(t *testing.T) {
	ctx := context.Background()
	hash := func(pw string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		return string(h)
	}

	t.Run("no users", func(t *testing.T) {
		if _, err := Default().Authenticator(); err == nil {
			t.Fatalf("expected users mode without users to fail")
		}
	})

	t.Run("accept all must be chosen", func(t *testing.T) {
		t.Setenv("OPENBIS_AUTH_MODE", "accept_all")
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		auth, err := cfg.Authenticator()
		if err != nil {
			t.Fatalf("authenticator: %v", err)
		}
		if ok, _ := auth.Authenticate(ctx, "anyone", "anything"); !ok {
			t.Fatalf("accept_all must let everyone in")
		}
	})

	t.Run("users file overrides inline users", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "users.yaml")
		if err := os.WriteFile(file, []byte("admin: '"+hash("from-file")+"'\n"), 0o600); err != nil {
			t.Fatalf("write users: %v", err)
		}
		t.Setenv("OPENBIS_AUTH_USERS_FILE", file)
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		cfg.Auth.Users = map[string]string{"admin": hash("inline"), "bob": hash("bob-pw")}
		auth, err := cfg.Authenticator()
		if err != nil {
			t.Fatalf("authenticator: %v", err)
		}
		for _, tc := range []struct {
			user, password string
			want           bool
		}{
			{"admin", "from-file", true},
			{"admin", "inline", false},
			{"admin", "definitely-wrong-password", false},
			{"bob", "bob-pw", true},
			{"eve", "bob-pw", false},
		} {
			ok, err := auth.Authenticate(ctx, tc.user, tc.password)
			if err != nil || ok != tc.want {
				t.Fatalf("%s/%s: got %v, %v want %v", tc.user, tc.password, ok, err, tc.want)
			}
		}
	})

	t.Run("plain text password rejected", func(t *testing.T) {
		cfg := Default()
		cfg.Auth.Users = map[string]string{"admin": "hunter2"}
		if _, err := cfg.Authenticator(); err == nil {
			t.Fatalf("expected a non-bcrypt entry to fail")
		}
	})

	t.Run("missing users file", func(t *testing.T) {
		cfg := Default()
		cfg.Auth.UsersFile = filepath.Join(t.TempDir(), "none.yaml")
		if _, err := cfg.Authenticator(); err == nil {
			t.Fatalf("expected a missing users file to fail")
		}
	})
}
