package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "opscenter" {
		t.Errorf("expected Name=opscenter, got %s", cfg.Name)
	}
	if cfg.Auth.Provider != ProviderMock {
		t.Errorf("expected Provider=mock, got %s", cfg.Auth.Provider)
	}
	if cfg.Storage.SessionKey != "wk_user_session" {
		t.Errorf("expected SessionKey=wk_user_session, got %s", cfg.Storage.SessionKey)
	}
	if cfg.Auth.Mock.ID != "WK-8821" {
		t.Errorf("expected mock id WK-8821, got %s", cfg.Auth.Mock.ID)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")

	path := filepath.Join(t.TempDir(), ".opscenter", "config.yaml")

	cfg := DefaultConfig()
	cfg.Auth.Provider = ProviderSSO
	cfg.Auth.ClientID = "client-123"
	cfg.Storage.Backend = BackendSQLite
	cfg.Storage.Path = "state.db"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderSSO, loaded.Auth.Provider)
	assert.Equal(t, "client-123", loaded.Auth.ClientID)
	assert.Equal(t, BackendSQLite, loaded.Storage.Backend)
	assert.Equal(t, "state.db", loaded.Storage.Path)
	assert.Equal(t, cfg.Auth.RoleMapping, loaded.Auth.RoleMapping)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Auth.Authority, cfg.Auth.Authority)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func TestEnvOverrides(t *testing.T) {
	t.Run("GEMINI_API_KEY beats API_KEY", func(t *testing.T) {
		t.Setenv("API_KEY", "legacy")
		t.Setenv("GEMINI_API_KEY", "gemini")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gemini", cfg.AI.APIKey)
	})

	t.Run("auth endpoints", func(t *testing.T) {
		t.Setenv("OPSCENTER_AUTH_AUTHORITY", "https://idp.example.com/tenant")
		t.Setenv("OPSCENTER_AUTH_CLIENT_ID", "abc")
		t.Setenv("OPSCENTER_AUTH_REDIRECT_URI", "http://localhost:9999/cb")
		t.Setenv("OPSCENTER_AUTH_PROVIDER", "SSO")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "https://idp.example.com/tenant", cfg.Auth.Authority)
		assert.Equal(t, "abc", cfg.Auth.ClientID)
		assert.Equal(t, "http://localhost:9999/cb", cfg.Auth.RedirectURI)
		assert.Equal(t, ProviderSSO, cfg.Auth.Provider)
	})

	t.Run("feature flag parses booleans only", func(t *testing.T) {
		t.Setenv("OPSCENTER_ENABLE_AI", "true")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.True(t, cfg.Features.EnableAI)

		t.Setenv("OPSCENTER_ENABLE_AI", "sure")
		cfg = DefaultConfig()
		cfg.applyEnvOverrides()
		assert.False(t, cfg.Features.EnableAI)
	})

	t.Run("dark mode", func(t *testing.T) {
		t.Setenv("OPSCENTER_DARK_MODE", "1")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "dark", cfg.UI.Theme)
	})
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.Auth.Provider = "ldap" }, true},
		{"sso without client id", func(c *Config) {
			c.Auth.Provider = ProviderSSO
			c.Auth.ClientID = ""
		}, true},
		{"sso redirect without port", func(c *Config) {
			c.Auth.Provider = ProviderSSO
			c.Auth.RedirectURI = "http://localhost/cb"
		}, true},
		{"sso valid", func(c *Config) { c.Auth.Provider = ProviderSSO }, false},
		{"bad role mapping", func(c *Config) { c.Auth.RoleMapping["x"] = "ROOT" }, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, true},
		{"file backend without path", func(c *Config) { c.Storage.Path = "" }, true},
		{"memory backend without path", func(c *Config) {
			c.Storage.Backend = BackendMemory
			c.Storage.Path = ""
		}, false},
		{"empty session key", func(c *Config) { c.Storage.SessionKey = "" }, true},
		{"ai enabled without key", func(c *Config) { c.Features.EnableAI = true }, true},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 800*time.Millisecond, cfg.Auth.GetInitDelay())
	assert.Equal(t, 1500*time.Millisecond, cfg.Auth.GetLoginLatency())
	assert.Equal(t, 120*time.Second, cfg.GetAITimeout())

	cfg.Auth.LoginLatency = "garbage"
	assert.Equal(t, 1500*time.Millisecond, cfg.Auth.GetLoginLatency(), "falls back on parse error")

	cfg.Auth.InitDelay = "0s"
	assert.Equal(t, time.Duration(0), cfg.Auth.GetInitDelay())
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/ws", "a.json"), ResolvePath("/ws", "a.json"))
	assert.Equal(t, "/abs/a.json", ResolvePath("/ws", "/abs/a.json"))
	assert.Equal(t, "", ResolvePath("/ws", ""))
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{}
	assert.False(t, lc.IsCategoryEnabled("session"))

	lc.DebugMode = true
	assert.True(t, lc.IsCategoryEnabled("session"))

	lc.Categories = map[string]bool{"session": false}
	assert.False(t, lc.IsCategoryEnabled("session"))
	assert.True(t, lc.IsCategoryEnabled("storage"))
}
