package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all opscenter configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Identity and session gate
	Auth AuthConfig `yaml:"auth"`

	// Durable client-side storage
	Storage StorageConfig `yaml:"storage"`

	// Generative AI copilot
	AI AIConfig `yaml:"ai"`

	// Feature toggles
	Features FeaturesConfig `yaml:"features"`

	// Company metadata shown in the shell
	Company CompanyConfig `yaml:"company"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// UI settings
	UI UIConfig `yaml:"ui"`
}

// AIConfig configures the copilot client.
type AIConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`           // summaries and grounded briefs
	ReasoningModel string `yaml:"reasoning_model"` // strategic analysis
	ChatModel      string `yaml:"chat_model"`
	ThinkingBudget int32  `yaml:"thinking_budget"`
	Timeout        string `yaml:"timeout"`
}

// FeaturesConfig holds feature switches.
type FeaturesConfig struct {
	EnableAI       bool `yaml:"enable_ai"`
	EnableRealtime bool `yaml:"enable_realtime"`
}

// CompanyConfig holds support and legal metadata.
type CompanyConfig struct {
	Name                   string `yaml:"name"`
	SupportEmail           string `yaml:"support_email"`
	LegalDisclaimerVersion string `yaml:"legal_disclaimer_version"`
}

// UIConfig configures the interactive shell.
type UIConfig struct {
	Theme string `yaml:"theme"` // light, dark, auto
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "opscenter",
		Version: "0.3.0",

		Auth: AuthConfig{
			Provider:     ProviderMock,
			Authority:    "https://login.microsoftonline.com/common",
			ClientID:     "mock-client-id",
			RedirectURI:  "http://localhost:51121/auth/callback",
			Scopes:       []string{"openid", "profile", "email"},
			InitDelay:    "800ms",
			LoginLatency: "1500ms",
			LoginTimeout: "5m",
			RoleMapping: map[string]string{
				"SalesOps-Admins":   "ADMIN",
				"SalesOps-Analysts": "ANALYST",
				"SalesOps-Readers":  "VIEWER",
			},
			Mock: MockIdentity{
				ID:     "WK-8821",
				Name:   "Alex Rivera",
				Email:  "alex.rivera@wolterskluwer.com",
				Groups: []string{"SalesOps-Admins"},
			},
		},

		Storage: StorageConfig{
			Backend:    BackendFile,
			Path:       ".opscenter/storage.json",
			SessionKey: "wk_user_session",
			Watch:      true,
		},

		AI: AIConfig{
			Model:          "gemini-2.5-flash",
			ReasoningModel: "gemini-3-pro-preview",
			ChatModel:      "gemini-3-pro-preview",
			ThinkingBudget: 32768,
			Timeout:        "120s",
		},

		Features: FeaturesConfig{
			EnableAI:       false,
			EnableRealtime: true,
		},

		Company: CompanyConfig{
			Name:                   "WK Sales Ops",
			SupportEmail:           "helpdesk@wolterskluwer.com",
			LegalDisclaimerVersion: "1.0.2",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},

		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// DefaultConfigPath returns the config location inside a workspace.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(workspace, ".opscenter", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Missing file is fine, defaults plus environment apply
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// GEMINI_API_KEY wins when both are set
	if key := os.Getenv("API_KEY"); key != "" {
		c.AI.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.AI.APIKey = key
	}

	if v := os.Getenv("OPSCENTER_AUTH_AUTHORITY"); v != "" {
		c.Auth.Authority = v
	}
	if v := os.Getenv("OPSCENTER_AUTH_CLIENT_ID"); v != "" {
		c.Auth.ClientID = v
	}
	if v := os.Getenv("OPSCENTER_AUTH_CLIENT_SECRET"); v != "" {
		c.Auth.ClientSecret = v
	}
	if v := os.Getenv("OPSCENTER_AUTH_REDIRECT_URI"); v != "" {
		c.Auth.RedirectURI = v
	}
	if v := os.Getenv("OPSCENTER_AUTH_PROVIDER"); v != "" {
		c.Auth.Provider = strings.ToLower(v)
	}

	if v := os.Getenv("OPSCENTER_ENABLE_AI"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Features.EnableAI = enabled
		}
	}

	if path := os.Getenv("OPSCENTER_STORAGE_PATH"); path != "" {
		c.Storage.Path = path
	}
	if backend := os.Getenv("OPSCENTER_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = strings.ToLower(backend)
	}

	if os.Getenv("OPSCENTER_DARK_MODE") == "1" {
		c.UI.Theme = "dark"
	}
}

// GetAITimeout returns the copilot timeout as a duration.
func (c *Config) GetAITimeout() time.Duration {
	return parseDuration(c.AI.Timeout, 120*time.Second)
}

// AIEnabled reports whether the copilot can be used at all.
func (c *Config) AIEnabled() bool {
	return c.Features.EnableAI && c.AI.APIKey != ""
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.Features.EnableAI && c.AI.APIKey == "" {
		return fmt.Errorf("AI is enabled but no API key is configured (set GEMINI_API_KEY)")
	}
	switch c.UI.Theme {
	case "", "auto", "light", "dark":
	default:
		return fmt.Errorf("invalid ui theme: %s (valid: auto, light, dark)", c.UI.Theme)
	}
	return nil
}

// ResolvePath makes a workspace-relative path absolute.
func ResolvePath(workspace, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
