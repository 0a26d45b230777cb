package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Identity providers the session gate can be wired to.
const (
	ProviderMock = "mock" // local stand-in with a fixed identity
	ProviderSSO  = "sso"  // OIDC authorization code flow with PKCE
)

// AuthConfig configures the session gate and its identity provider.
type AuthConfig struct {
	Provider     string   `yaml:"provider"`
	Authority    string   `yaml:"authority"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	RedirectURI  string   `yaml:"redirect_uri"`
	Scopes       []string `yaml:"scopes"`

	// InitDelay models the persisted-session lookup at startup.
	InitDelay string `yaml:"init_delay"`
	// LoginLatency is the mock provider's simulated redirect round trip.
	LoginLatency string `yaml:"login_latency"`
	// LoginTimeout bounds a real SSO round trip.
	LoginTimeout string `yaml:"login_timeout"`

	// RoleMapping maps directory groups to roles (ADMIN, ANALYST, VIEWER).
	RoleMapping map[string]string `yaml:"role_mapping"`

	Mock MockIdentity `yaml:"mock"`
}

// MockIdentity is the identity the mock provider asserts.
type MockIdentity struct {
	ID     string   `yaml:"id"`
	Name   string   `yaml:"name"`
	Email  string   `yaml:"email"`
	Groups []string `yaml:"groups"`
}

// GetInitDelay returns the startup lookup delay.
func (a *AuthConfig) GetInitDelay() time.Duration {
	return parseDuration(a.InitDelay, 800*time.Millisecond)
}

// GetLoginLatency returns the simulated login latency.
func (a *AuthConfig) GetLoginLatency() time.Duration {
	return parseDuration(a.LoginLatency, 1500*time.Millisecond)
}

// GetLoginTimeout returns the SSO round-trip timeout.
func (a *AuthConfig) GetLoginTimeout() time.Duration {
	return parseDuration(a.LoginTimeout, 5*time.Minute)
}

var validRoles = map[string]bool{"ADMIN": true, "ANALYST": true, "VIEWER": true}

// Validate checks the auth section.
func (a *AuthConfig) Validate() error {
	switch a.Provider {
	case ProviderMock, "":
	case ProviderSSO:
		if a.ClientID == "" {
			return fmt.Errorf("auth.client_id is required for the sso provider")
		}
		if _, err := url.ParseRequestURI(a.Authority); err != nil {
			return fmt.Errorf("invalid auth.authority %q: %w", a.Authority, err)
		}
		u, err := url.ParseRequestURI(a.RedirectURI)
		if err != nil {
			return fmt.Errorf("invalid auth.redirect_uri %q: %w", a.RedirectURI, err)
		}
		if u.Port() == "" {
			return fmt.Errorf("auth.redirect_uri must name a local port for the callback listener")
		}
	default:
		return fmt.Errorf("invalid auth provider: %s (valid: %s, %s)", a.Provider, ProviderMock, ProviderSSO)
	}

	for group, role := range a.RoleMapping {
		if !validRoles[strings.ToUpper(role)] {
			return fmt.Errorf("auth.role_mapping[%s]: unknown role %q", group, role)
		}
	}
	return nil
}
