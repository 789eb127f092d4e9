// ABOUTME: Root command, global flags and process-wide setup
// ABOUTME: Loads configuration and builds the logger before any subcommand runs
package main

import (
	"fmt"

	"github.com/Resonate-Protocol/playout/internal/config"
	"github.com/Resonate-Protocol/playout/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

// app holds state shared by all subcommands
type app struct {
	v       *viper.Viper
	cfgFile string

	cfg     *config.Config
	logger  *zap.Logger
	logSink *lumberjack.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{
		v:      viper.New(),
		logger: zap.NewNop(),
	}

	rootCmd := &cobra.Command{
		Use:           "playout",
		Short:         "Play audio on local output devices",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(version.String() + "\n")
	setupFlags(rootCmd, a)

	rootCmd.AddCommand(
		a.devicesCommand(),
		a.toneCommand(),
		a.playCommand(),
		a.renderCommand(),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.initialize(cmd)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		a.shutdown()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, a *app) {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Config file (default: ./playout.yaml or ~/.config/playout/playout.yaml)")
	flags.String("backend", "malgo", "Audio backend: malgo, oto or null")
	flags.String("device", "", "Output device ID or name (default: system default)")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-file", "playout.log", "Log file path (empty disables file logging)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flags.Int("buffer-ms", 20, "Device buffer duration in milliseconds")
	flags.Int("read-ahead-ms", 500, "Decode read-ahead per file in milliseconds (0 disables)")
	flags.Bool("tui", false, "Show the status TUI instead of streaming logs")
	flags.Bool("priority", true, "Raise the audio thread's scheduling priority")
}

// initialize runs after flag parsing and before any subcommand
func (a *app) initialize(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, a.logSink = newLogger(cfg)
	a.logger.Debug("Configuration loaded",
		zap.String("version", version.String()),
		zap.String("backend", cfg.Backend),
		zap.String("device", cfg.Device),
		zap.Duration("buffer", cfg.BufferDuration()))
	return nil
}

func (a *app) shutdown() {
	_ = a.logger.Sync()
	if a.logSink != nil {
		_ = a.logSink.Close()
	}
}
