package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
auth:
  jwt_secret: test-secret
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "reflectd.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Auth.Mode != "verify" {
		t.Errorf("Auth.Mode = %q", cfg.Auth.Mode)
	}
	if cfg.Billing.Mode != "none" {
		t.Errorf("Billing.Mode = %q", cfg.Billing.Mode)
	}
	if cfg.Titles.Mode != "none" || cfg.Titles.Timeout != 10*time.Second {
		t.Errorf("Titles = %+v", cfg.Titles)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9090
auth:
  mode: trust
billing:
  mode: stripe
  secret_key: sk_test_123
  webhook_secret: whsec_123
  portal_return_url: https://app.example.com/account
titles:
  mode: http
  base_url: https://llm.example.com/v1
  api_key: key-1
  model: gemini-2.5-flash
plans:
  - price_id: price_premium_monthly
    name: Inner Explorer
admin:
  token: admin-secret
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Billing.SecretKey != "sk_test_123" {
		t.Errorf("Billing.SecretKey = %q", cfg.Billing.SecretKey)
	}
	if len(cfg.Plans) != 1 || cfg.Plans[0].Name != "Inner Explorer" {
		t.Errorf("Plans = %+v", cfg.Plans)
	}
	if cfg.Admin.Token != "admin-secret" {
		t.Errorf("Admin.Token = %q", cfg.Admin.Token)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REFLECTD_SERVER_PORT", "3000")
	t.Setenv("REFLECTD_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want env override", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want env override", cfg.Logging.Level)
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "verify mode without secret",
			content: `auth: {mode: verify}`,
			wantErr: "jwt_secret",
		},
		{
			name: "stripe without webhook secret",
			content: `
auth: {jwt_secret: s}
billing: {mode: stripe, secret_key: sk}
`,
			wantErr: "webhook_secret",
		},
		{
			name: "http titles without api key",
			content: `
auth: {jwt_secret: s}
titles: {mode: http, base_url: https://x}
`,
			wantErr: "api_key",
		},
		{
			name: "plan without name",
			content: `
auth: {jwt_secret: s}
plans:
  - price_id: price_x
`,
			wantErr: "name",
		},
		{
			name: "http directory without service key",
			content: `
auth: {jwt_secret: s}
directory: {mode: http, base_url: https://auth.example.com}
`,
			wantErr: "service_key",
		},
		{
			name: "unknown billing mode",
			content: `
auth: {jwt_secret: s}
billing: {mode: paypal}
`,
			wantErr: "billing.mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestHolderReload(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	h, err := NewHolder(path, testLogger())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	if h.Get().Logging.Level != "info" {
		t.Fatalf("initial level = %q", h.Get().Logging.Level)
	}

	notified := false
	h.OnChange(func(*Config) { notified = true })

	if err := os.WriteFile(path, []byte(minimalConfig+"\nlogging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if h.Get().Logging.Level != "debug" {
		t.Errorf("level after reload = %q", h.Get().Logging.Level)
	}
	if !notified {
		t.Error("OnChange callback not invoked")
	}
}

func TestHolderReloadKeepsOldOnError(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	h, err := NewHolder(path, testLogger())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	var reloadErr error
	h.OnReloadError(func(err error) { reloadErr = err })

	if err := os.WriteFile(path, []byte("auth: {mode: bogus}"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := h.Reload(); err == nil {
		t.Fatal("Reload succeeded on invalid config")
	}

	if h.Get().Auth.Mode != "verify" {
		t.Errorf("Auth.Mode = %q, old config not kept", h.Get().Auth.Mode)
	}
	if reloadErr == nil {
		t.Error("OnReloadError callback not invoked")
	}
}
