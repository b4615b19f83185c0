// Package main is the entry point for the numberhub calculator and unit
// converter: a CLI plus REST and gRPC servers over the same core.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lemonberrylabs/numberhub/pkg/config"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var errorColor = color.New(color.FgRed, color.Bold)

// cli holds state shared by all subcommands of one invocation.
type cli struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	stderr  io.Writer
}

func newRootCmd() *cobra.Command {
	app := &cli{v: viper.New(), stderr: os.Stderr}

	rootCmd := &cobra.Command{
		Use:   "numberhub",
		Short: "Arbitrary-precision calculator and unit converter",
		Long: `numberhub evaluates calculator expressions on arbitrary-precision decimals,
converts between units and currencies, and serves the same operations over
REST and gRPC.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.initConfig,
	}
	rootCmd.Version = version + " (commit=" + commit + ", built=" + date + ")"
	rootCmd.SetVersionTemplate("numberhub version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&app.cfgFile, "config", "", "config file (default: $HOME/.config/numberhub/config.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "console", "log format (console, json)")
	pf.Int("precision", 10, "fractional digits shown in results")
	pf.String("angle", "rad", "angle mode for trigonometry (rad, deg)")
	pf.String("store", config.DriverMemory, "usage store driver (memory, sqlite)")
	pf.String("store-path", "", "sqlite database path")
	pf.String("rates-file", "", "exchange rate file (YAML or TOML)")
	pf.String("rates-cache", "", "exchange rate disk cache (msgpack)")

	rootCmd.AddCommand(app.serveCmd())
	rootCmd.AddCommand(app.evalCmd())
	rootCmd.AddCommand(app.deleteRangeCmd())
	rootCmd.AddCommand(app.timeCmd())
	rootCmd.AddCommand(app.convertCmd())
	rootCmd.AddCommand(app.unitsCmd())
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		_, _ = errorColor.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *cli) initConfig(cmd *cobra.Command, _ []string) error {
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := cfg.Logging.NewLogger(a.stderr)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)
	return nil
}
