package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/appshell"
	"github.com/loykin/appshell/internal/logger"
)

// version is the running application version; overridden at build time via
// -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	flags := &RunFlags{}

	root := &cobra.Command{
		Use:   "appshell",
		Short: "Desktop shell supervising the bundled backend server",
		Long: `Appshell launches the packaged backend server, relays its output into the
application log, and notifies about new upstream releases.

Examples:
  appshell                         # windowed mode
  appshell --headless              # serve the frontend on the local port
  appshell --headless --config=appshell.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), flags)
		},
		SilenceUsage: true,
	}

	root.Flags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.Flags().BoolVar(&flags.Headless, "headless", false, "run without a native window, serve the frontend over the local port")
	root.Flags().BoolVar(&flags.DisableGPU, "disable-gpu", false, "disable GPU acceleration in the window layer")
	root.Flags().BoolVar(&flags.NoUpdateCheck, "no-update-check", false, "skip the release notification pass")
	root.Flags().StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	return root
}

// resolveConfig merges the config file (when given) with command-line
// overrides. Flags win over file values.
func resolveConfig(flags *RunFlags) (appshell.Config, error) {
	cfg := appshell.DefaultConfig()
	if flags.ConfigPath != "" {
		loaded, err := appshell.LoadConfig(flags.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if flags.Headless {
		cfg.Headless = true
	}
	if flags.DisableGPU {
		cfg.DisableGPU = true
	}
	if flags.NoUpdateCheck {
		cfg.Update.Enabled = false
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	return cfg, nil
}

func runShell(ctx context.Context, flags *RunFlags) error {
	cfg, err := resolveConfig(flags)
	if err != nil {
		return err
	}
	logger.Setup(cfg.LogLevel, cfg.LogColor)

	shell, err := appshell.New(cfg, version)
	if err != nil {
		return err
	}
	defer shell.Shutdown()

	sess, err := shell.Run(ctx)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	case <-sess.Done():
		// server gone; the exit was already classified and logged
	case <-ctx.Done():
	}
	shell.Shutdown()
	return nil
}
