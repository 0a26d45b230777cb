// Package app wires configuration, storage, the session gate and the
// optional copilot into one context shared by the CLI and the shell.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"opscenter/internal/auth"
	"opscenter/internal/auth/sso"
	"opscenter/internal/config"
	"opscenter/internal/consent"
	"opscenter/internal/copilot"
	"opscenter/internal/dashboard"
	"opscenter/internal/logging"
	"opscenter/internal/storage"

	"github.com/jonboulle/clockwork"
)

// Options control how the context is built.
type Options struct {
	Workspace string
	// Config is used as-is when set; otherwise it is loaded from ConfigPath
	// or the workspace default.
	Config     *config.Config
	ConfigPath string

	Clock clockwork.Clock
	// Provider overrides the configured identity provider.
	Provider auth.IdentityProvider
	// OnAuthURL receives the sign-in URL when the SSO provider is used.
	OnAuthURL func(string)
}

// Context owns every long-lived component. Close releases them.
type Context struct {
	Workspace string
	Config    *config.Config
	Store     storage.Store
	Gate      *auth.Gate
	Consent   *consent.Tracker
	Notice    consent.Notice
	Data      *dashboard.Dataset
	Scanner   *dashboard.Scanner
	// Copilot is nil when AI is disabled or unconfigured.
	Copilot *copilot.Copilot
	// Durable is false when the configured store could not be opened and
	// sessions only live in memory.
	Durable bool

	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New builds the context. It does not run the gate's startup lookup; callers
// decide when to Initialize.
func New(ctx context.Context, opts Options) (*Context, error) {
	cfg := opts.Config
	if cfg == nil {
		path := opts.ConfigPath
		if path == "" {
			path = config.DefaultConfigPath(opts.Workspace)
		}
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	roles, err := auth.NewRoleMapper(cfg.Auth.RoleMapping)
	if err != nil {
		return nil, err
	}

	provider := opts.Provider
	if provider == nil {
		if provider, err = newProvider(cfg, clock, opts.OnAuthURL); err != nil {
			return nil, err
		}
	}

	c := &Context{
		Workspace: opts.Workspace,
		Config:    cfg,
		Data:      dashboard.Sample(),
		Scanner:   dashboard.NewScanner(clock),
		Notice:    consent.DefaultNotice(cfg.Company),
		Durable:   true,
	}

	store, err := storage.Open(opts.Workspace, cfg.Storage)
	if err != nil {
		logging.StorageWarn("durable storage unavailable, sessions will not persist: %v", err)
		store = storage.NewMemoryStore()
		c.Durable = false
	}
	c.Store = store

	c.Gate = auth.NewGate(store, provider,
		auth.WithClock(clock),
		auth.WithInitDelay(cfg.Auth.GetInitDelay()),
		auth.WithSessionKey(cfg.Storage.SessionKey),
		auth.WithRoleMapper(roles),
	)
	c.Consent = consent.NewTracker(storage.NewMemoryStore(), cfg.Company.LegalDisclaimerVersion)

	if cfg.Features.EnableAI {
		cp, err := copilot.New(ctx, cfg, c.Data)
		switch {
		case errors.Is(err, copilot.ErrNotConfigured):
			logging.Boot("AI enabled but not configured, copilot disabled")
		case err != nil:
			logging.BootWarn("copilot unavailable: %v", err)
		default:
			c.Copilot = cp
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	if w, ok := store.(storage.Watcher); ok && cfg.Storage.Watch {
		if err := w.Watch(watchCtx, c.Gate.Sync); err != nil {
			logging.StorageWarn("cross-process session sync disabled: %v", err)
		}
	}

	logging.Boot("context ready: provider=%s storage=%s durable=%t copilot=%t",
		provider.Name(), cfg.Storage.Backend, c.Durable, c.Copilot != nil)
	return c, nil
}

func newProvider(cfg *config.Config, clock clockwork.Clock, onAuthURL func(string)) (auth.IdentityProvider, error) {
	switch cfg.Auth.Provider {
	case config.ProviderSSO:
		p, err := sso.New(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to configure sso: %w", err)
		}
		if onAuthURL != nil {
			p.OnAuthURL = onAuthURL
		}
		return p, nil
	default:
		m := cfg.Auth.Mock
		return auth.NewMockProvider(clock, cfg.Auth.GetLoginLatency(), auth.Identity{
			Subject: m.ID,
			Name:    m.Name,
			Email:   m.Email,
			Groups:  m.Groups,
		}), nil
	}
}

// SignOut logs out and forgets the notice acceptance.
func (c *Context) SignOut() {
	c.Gate.Logout()
	c.Consent.Reset()
}

// Close stops the storage watcher, closes the gate and the store.
func (c *Context) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.Gate.Close()
		err = c.Store.Close()
	})
	return err
}
