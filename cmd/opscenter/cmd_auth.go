package main

import (
	"context"
	"errors"
	"fmt"

	"opscenter/internal/app"
	"opscenter/internal/auth"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// authCmd manages the persisted session
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the signed-in session",
	Long: `Sign in, sign out or inspect the session shared with the interactive shell.

Available subcommands:
  login  - Sign in through the configured identity provider
  logout - Sign out and forget the stored session
  status - Show the current session`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the configured identity provider",
	Long: `Runs the sign-in round trip and stores the session in the workspace.

With the sso provider a sign-in URL is printed; open it in a browser and
complete the corporate login. The command waits for the redirect.`,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE:  runAuthStatus,
}

func printAuthURL(u string) {
	fmt.Println("Open this URL in your browser to sign in:")
	fmt.Printf("\n  %s\n\n", u)
	fmt.Println("Waiting for the identity provider...")
}

// withGate opens the workspace and settles the session gate before fn runs.
func withGate(onAuthURL func(string), fn func(ctx context.Context, a *app.Context) error) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, onAuthURL)
	if err != nil {
		return err
	}
	defer a.Close()

	state := a.Gate.Initialize(ctx)
	logger.Debug("Session gate ready", zap.Stringer("state", state))
	return fn(ctx, a)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	return withGate(printAuthURL, func(ctx context.Context, a *app.Context) error {
		if s := a.Gate.Session(); s != nil {
			fmt.Printf("Already signed in as %s (%s)\n", s.DisplayName(), s.Role)
			return nil
		}

		fmt.Println("Signing in...")
		s, err := a.Gate.Login(ctx).Wait(ctx)
		if err != nil {
			var loginErr *auth.LoginError
			if errors.As(err, &loginErr) {
				logger.Warn("Sign-in failed", zap.String("provider", loginErr.Provider), zap.Error(loginErr.Err))
				return errors.New(loginErr.UserMessage())
			}
			return fmt.Errorf("sign-in did not complete: %w", err)
		}

		fmt.Printf("✓ Signed in as %s (%s)\n", s.DisplayName(), s.Role)
		if a.Gate.Snapshot().Ephemeral {
			fmt.Println("⚠ The session could not be saved and will not survive a restart.")
		}
		return nil
	})
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	return withGate(nil, func(ctx context.Context, a *app.Context) error {
		if !a.Gate.IsAuthenticated() {
			fmt.Println("Not signed in.")
			return nil
		}
		a.SignOut()
		fmt.Println("✓ Signed out")
		return nil
	})
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	return withGate(nil, func(ctx context.Context, a *app.Context) error {
		snap := a.Gate.Snapshot()
		fmt.Println("Session Status")
		fmt.Println("==============")
		fmt.Printf("State:    %s\n", snap.State)
		fmt.Printf("Provider: %s\n", a.Config.Auth.Provider)
		fmt.Printf("Storage:  %s (durable: %t)\n", a.Config.Storage.Backend, a.Durable)
		if s := snap.Session; s != nil {
			fmt.Printf("User:     %s\n", s.DisplayName())
			fmt.Printf("ID:       %s\n", s.ID)
			if s.Email != "" {
				fmt.Printf("Email:    %s\n", s.Email)
			}
			fmt.Printf("Role:     %s\n", s.Role)
		} else {
			fmt.Println("\nRun 'opscenter auth login' to sign in.")
		}
		return nil
	})
}
