package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"opscenter/cmd/opscenter/shell"
	"opscenter/internal/app"
	"opscenter/internal/config"
	"opscenter/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "opscenter",
	Short: "WK Sales Ops command center",
	Long: `opscenter is a terminal command center for sales operations and compliance.

Access is gated by corporate SSO. After signing in and accepting the
confidentiality notice you can browse pipeline, compliance and performance
pages and ask the AI copilot for summaries and strategy.

Run without arguments to start the interactive shell.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The interactive shell owns the terminal, so no console logger
		if cmd == cmd.Root() {
			logger = zap.NewNop()
			return nil
		}

		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runShell,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.opscenter/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Timeout for non-interactive commands")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)

	insightsCmd.AddCommand(insightsSummaryCmd)
	insightsCmd.AddCommand(insightsBriefCmd)
	insightsCmd.AddCommand(insightsAnalyzeCmd)

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(insightsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveWorkspace returns the absolute workspace directory.
func resolveWorkspace() (string, error) {
	ws := workspace
	if ws == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		ws = cwd
	}
	return filepath.Abs(ws)
}

// openApp loads configuration, starts category logging and builds the
// application context.
func openApp(ctx context.Context, onAuthURL func(string)) (*app.Context, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, err
	}
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath(ws)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := logging.Initialize(ws, cfg.Logging); err != nil {
		logger.Warn("Category logging disabled", zap.Error(err))
	}

	logger.Debug("Opening workspace", zap.String("workspace", ws), zap.String("config", path))
	return app.New(ctx, app.Options{
		Workspace: ws,
		Config:    cfg,
		OnAuthURL: onAuthURL,
	})
}

// commandContext bounds a non-interactive command by --timeout and cancels it
// on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	return shell.Run(ctx, a)
}
