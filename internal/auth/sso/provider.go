// Package sso signs users in against an OpenID Connect directory using the
// authorization code flow with PKCE and a loopback redirect.
package sso

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"opscenter/internal/auth"
	"opscenter/internal/config"
	"opscenter/internal/logging"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Provider implements auth.IdentityProvider.
type Provider struct {
	oauth    *oauth2.Config
	redirect *url.URL
	timeout  time.Duration

	// OnAuthURL is called with the URL the user must open. It must not block.
	OnAuthURL func(authURL string)
}

// New builds a provider from the auth configuration. The authority is an
// Entra-style tenant URL; the v2.0 authorize and token endpoints are
// derived from it.
func New(ac config.AuthConfig) (*Provider, error) {
	redirect, err := url.Parse(ac.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect uri: %w", err)
	}
	if redirect.Port() == "" {
		return nil, fmt.Errorf("redirect uri %q must include a port", ac.RedirectURI)
	}
	if redirect.Path == "" {
		redirect.Path = "/"
	}
	authority := strings.TrimRight(ac.Authority, "/")
	if authority == "" {
		return nil, fmt.Errorf("authority is required")
	}

	scopes := ac.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     ac.ClientID,
			ClientSecret: ac.ClientSecret,
			RedirectURL:  redirect.String(),
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authority + "/oauth2/v2.0/authorize",
				TokenURL: authority + "/oauth2/v2.0/token",
			},
		},
		redirect: redirect,
		timeout:  ac.GetLoginTimeout(),
		OnAuthURL: func(authURL string) {
			logging.Auth("open %s to continue sign-in", authURL)
		},
	}, nil
}

func (p *Provider) Name() string { return config.ProviderSSO }

// Authenticate runs one authorization code round trip.
func (p *Provider) Authenticate(ctx context.Context) (*auth.Identity, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ln, err := net.Listen("tcp", p.redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for the sign-in callback: %w", err)
	}

	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()
	p.OnAuthURL(p.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)))

	code, err := waitForCallback(ctx, ln, p.redirect.Path, state)
	if err != nil {
		return nil, err
	}
	logging.AuthDebug("authorization code received, redeeming")

	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("token response carried no id_token")
	}
	return IdentityFromIDToken(raw, time.Now())
}

// Claims is the subset of ID token claims the gate uses.
type Claims struct {
	jwt.RegisteredClaims
	ObjectID          string   `json:"oid,omitempty"`
	Name              string   `json:"name,omitempty"`
	Email             string   `json:"email,omitempty"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Groups            []string `json:"groups,omitempty"`
	Roles             []string `json:"roles,omitempty"`
}

// IdentityFromIDToken extracts the identity from an ID token. The token is
// taken straight from the token endpoint over TLS, so its signature is not
// re-verified here; expiry still is.
func IdentityFromIDToken(raw string, now time.Time) (*auth.Identity, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("malformed id_token: %w", err)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("id_token expired at %s", claims.ExpiresAt.Time.Format(time.RFC3339))
	}

	id := &auth.Identity{
		Subject: claims.ObjectID,
		Name:    claims.Name,
		Email:   claims.Email,
	}
	if id.Subject == "" {
		id.Subject = claims.Subject
	}
	if id.Email == "" {
		id.Email = claims.PreferredUsername
	}
	// App roles are matched the same way as groups.
	id.Groups = append(append([]string(nil), claims.Groups...), claims.Roles...)
	if id.Subject == "" {
		return nil, fmt.Errorf("id_token has no subject")
	}
	return id, nil
}
