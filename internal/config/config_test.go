package config

import (
	"os"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Password: "secret",
				Name:     "sogebot",
				SSLMode:  "disable",
			},
			want: "host=localhost port=5432 user=postgres password=secret dbname=sogebot sslmode=disable",
		},
		{
			name: "require ssl mode",
			cfg: DatabaseConfig{
				Host:     "db.example.com",
				Port:     5433,
				User:     "admin",
				Password: "pass",
				Name:     "plugins",
				SSLMode:  "require",
			},
			want: "host=db.example.com port=5433 user=admin password=pass dbname=plugins sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetDSN()
			if got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 3000}, "0.0.0.0:3000"},
		{"localhost", ServerConfig{Host: "localhost", Port: 8080}, "localhost:8080"},
		{"empty host", ServerConfig{Host: "", Port: 3000}, ":3000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetAddress()
			if got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsAdmin(t *testing.T) {
	a := AuthConfig{AdminUsers: []string{"111", "222"}}
	if !a.IsAdmin("222") {
		t.Error("IsAdmin(222) = false, want true")
	}
	if a.IsAdmin("333") {
		t.Error("IsAdmin(333) = true, want false")
	}
	if (&AuthConfig{}).IsAdmin("") {
		t.Error("IsAdmin on empty list = true, want false")
	}
}

// ---------------------------------------------------------------------------
// Config.Validate
// ---------------------------------------------------------------------------

func minimalValidConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 3000},
		Database: DatabaseConfig{
			Host: "localhost",
			Name: "sogebot",
			User: "postgres",
		},
		Storage: StorageConfig{
			ArchiveEnabled: true,
			DefaultBackend: "local",
			Local:          LocalStorageConfig{BasePath: "./storage"},
		},
		Auth: AuthConfig{
			Provider: "twitch",
			Twitch:   TwitchConfig{ValidateURL: "https://id.twitch.tv/oauth2/validate"},
			Cache:    AuthCacheConfig{Enabled: true, Backend: "memory", TTL: time.Minute},
		},
		Security: SecurityConfig{
			RateLimiting: RateLimitingConfig{Enabled: true, Backend: "memory", RequestsPerMinute: 60, ClientRequestsPerMinute: 300},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid minimal config", func(c *Config) {}, false},
		{"port 0", func(c *Config) { c.Server.Port = 0 }, true},
		{"port 70000", func(c *Config) { c.Server.Port = 70000 }, true},
		{"missing database host", func(c *Config) { c.Database.Host = "" }, true},
		{"missing database name", func(c *Config) { c.Database.Name = "" }, true},
		{"missing database user", func(c *Config) { c.Database.User = "" }, true},
		{"invalid storage backend", func(c *Config) { c.Storage.DefaultBackend = "ftp" }, true},
		{"s3 without bucket", func(c *Config) { c.Storage.DefaultBackend = "s3"; c.Storage.S3.Region = "us-east-1" }, true},
		{"s3 without bucket but archive disabled", func(c *Config) {
			c.Storage.DefaultBackend = "s3"
			c.Storage.ArchiveEnabled = false
		}, false},
		{"gcs without bucket", func(c *Config) { c.Storage.DefaultBackend = "gcs" }, true},
		{"azure without account", func(c *Config) { c.Storage.DefaultBackend = "azure" }, true},
		{"unknown auth provider", func(c *Config) { c.Auth.Provider = "ldap" }, true},
		{"twitch without url", func(c *Config) { c.Auth.Twitch.ValidateURL = "" }, true},
		{"oidc without issuer", func(c *Config) { c.Auth.Provider = "oidc" }, true},
		{"oidc with issuer", func(c *Config) {
			c.Auth.Provider = "oidc"
			c.Auth.OIDC.IssuerURL = "https://issuer.example.com"
		}, false},
		{"jwt short secret", func(c *Config) { c.Auth.Provider = "jwt"; c.Auth.JWT.Secret = "short" }, true},
		{"jwt long secret", func(c *Config) {
			c.Auth.Provider = "jwt"
			c.Auth.JWT.Secret = "0123456789abcdef0123456789abcdef"
		}, false},
		{"bad cache backend", func(c *Config) { c.Auth.Cache.Backend = "memcached" }, true},
		{"zero cache ttl", func(c *Config) { c.Auth.Cache.TTL = 0 }, true},
		{"cache disabled ignores backend", func(c *Config) {
			c.Auth.Cache.Enabled = false
			c.Auth.Cache.Backend = ""
		}, false},
		{"bad rate limit backend", func(c *Config) { c.Security.RateLimiting.Backend = "etcd" }, true},
		{"zero rpm", func(c *Config) { c.Security.RateLimiting.RequestsPerMinute = 0 }, true},
		{"zero client rpm", func(c *Config) { c.Security.RateLimiting.ClientRequestsPerMinute = 0 }, true},
		{"tls without cert", func(c *Config) { c.Security.TLS.Enabled = true }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := minimalValidConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "config-test-*.yaml")
	if err != nil {
		t.Fatal("CreateTemp:", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	if _, err := f.WriteString(content); err != nil {
		t.Fatal("WriteString:", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTempConfig(t, "logging:\n  level: info\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("default Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Database.Name != "sogebot" {
		t.Errorf("default Database.Name = %q, want sogebot", cfg.Database.Name)
	}
	if cfg.Database.User != "postgres" || cfg.Database.Password != "postgres" {
		t.Errorf("default credentials = %q/%q, want postgres/postgres", cfg.Database.User, cfg.Database.Password)
	}
	if cfg.Database.SSLMode != "disable" {
		t.Errorf("default Database.SSLMode = %q, want disable", cfg.Database.SSLMode)
	}
	if cfg.Auth.Provider != "twitch" {
		t.Errorf("default Auth.Provider = %q, want twitch", cfg.Auth.Provider)
	}
	if cfg.Auth.Twitch.Scheme != "OAuth" {
		t.Errorf("default Auth.Twitch.Scheme = %q, want OAuth", cfg.Auth.Twitch.Scheme)
	}
	if cfg.Auth.Cache.TTL != 5*time.Minute {
		t.Errorf("default Auth.Cache.TTL = %v, want 5m", cfg.Auth.Cache.TTL)
	}
	if rl := cfg.Security.RateLimiting; rl.ClientRequestsPerMinute != 300 || rl.ClientBurst != 60 {
		t.Errorf("default client limits = %d/%d, want 300/60", rl.ClientRequestsPerMinute, rl.ClientBurst)
	}
}

func TestRateLimitingConfig_PerClient(t *testing.T) {
	rl := RateLimitingConfig{Enabled: true, Backend: "redis", RequestsPerMinute: 120, Burst: 20, ClientRequestsPerMinute: 300, ClientBurst: 60}
	got := rl.PerClient()
	if got.RequestsPerMinute != 300 || got.Burst != 60 {
		t.Errorf("PerClient() limits = %d/%d, want 300/60", got.RequestsPerMinute, got.Burst)
	}
	if got.Backend != "redis" || !got.Enabled {
		t.Errorf("PerClient() = %+v, want backend and enabled preserved", got)
	}
}

func TestLoad_WithConfigFile(t *testing.T) {
	const content = `
server:
  host: "testhost"
  port: 9999
database:
  host: "dbhost"
  name: "testdb"
  user: "testuser"
auth:
  provider: "oidc"
  oidc:
    issuer_url: "https://issuer.example.com"
  admin_users: ["42"]
logging:
  level: "debug"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "testhost" || cfg.Server.Port != 9999 {
		t.Errorf("Server = %s:%d, want testhost:9999", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Database.Host != "dbhost" {
		t.Errorf("Database.Host = %q, want dbhost", cfg.Database.Host)
	}
	if cfg.Auth.Provider != "oidc" {
		t.Errorf("Auth.Provider = %q, want oidc", cfg.Auth.Provider)
	}
	if !cfg.Auth.IsAdmin("42") {
		t.Error("expected user 42 to be an admin")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_LegacyEnvVars(t *testing.T) {
	t.Setenv("PG_HOST", "legacy-db")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("PG_USERNAME", "bot")
	t.Setenv("PG_PASSWORD", "hunter2")
	t.Setenv("PG_DB", "bots")
	t.Setenv("PORT", "4000")

	cfg, err := Load(writeTempConfig(t, "logging:\n  level: info\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Host != "legacy-db" || cfg.Database.Port != 6543 {
		t.Errorf("Database = %s:%d, want legacy-db:6543", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.User != "bot" || cfg.Database.Password != "hunter2" || cfg.Database.Name != "bots" {
		t.Errorf("Database credentials not taken from legacy env: %+v", cfg.Database)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	t.Setenv("PLUGINS_DATABASE_HOST", "prefixed-db")
	t.Setenv("PG_HOST", "legacy-db")

	cfg, err := Load(writeTempConfig(t, "logging:\n  level: info\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Host != "prefixed-db" {
		t.Errorf("Database.Host = %q, want prefixed-db", cfg.Database.Host)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASS", "mysecret")
	const content = `
database:
  password: "${TEST_DB_PASS}"
logging:
  level: "info"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Password != "mysecret" {
		t.Errorf("Database.Password = %q, want mysecret", cfg.Database.Password)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeTempConfig(t, "auth:\n  provider: saml\n")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected validation error, got nil")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CONFIG_TEST_SECRET", "super-secret")
	if got := expandEnv("${CONFIG_TEST_SECRET}"); got != "super-secret" {
		t.Errorf("expandEnv() = %q, want super-secret", got)
	}
	if got := expandEnv("no-vars-here"); got != "no-vars-here" {
		t.Errorf("expandEnv() = %q, want passthrough", got)
	}
}
