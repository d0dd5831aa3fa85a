package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/octanebot/octanebot/internal/config"
	"github.com/octanebot/octanebot/internal/logging"
	"github.com/octanebot/octanebot/internal/telemetry"
)

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

// app holds the state shared by the subcommands once the root pre-run has
// loaded the configuration.
type app struct {
	configFile string
	envFile    string

	v      *viper.Viper
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "octanebot",
		Short: "octanebot - chat bot for ALM Octane",
		Long: `Octanebot answers chat commands against an ALM Octane workspace:
show, search, create and update work items, and tune how they are displayed.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: ./octanebot.yaml or ~/.config/octanebot/octanebot.yaml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", config.EnvFile, "env file loaded before reading the config")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(
		newSlackCmd(a),
		newConsoleCmd(a),
		newTranslateCmd(),
		newVersionCmd(),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfig] == "true" {
		return nil
	}

	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	v, err := config.New(a.configFile)
	if err != nil {
		return err
	}
	if err := v.BindPFlag("debug", cmd.Flags().Lookup("debug")); err != nil {
		return fmt.Errorf("bind debug flag: %w", err)
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	a.v, a.cfg = v, cfg

	logger, _, err := logging.New(logging.Options{
		Debug:   cfg.Debug,
		Console: cmd.Name() == "console",
	})
	if err != nil {
		return err
	}
	a.logger = logger
	if cfg.File != "" {
		logger.Debug("config loaded", zap.String("file", cfg.File))
	}

	if err := telemetry.Init(cmd.Context(), telemetryOptions(cfg)); err != nil {
		logger.Warn("telemetry disabled", zap.Error(err))
	}
	return nil
}

func telemetryOptions(cfg *config.Config) telemetry.Options {
	return telemetry.Options{
		Enabled:  cfg.Telemetry.Enabled,
		Stdout:   cfg.Telemetry.Stdout,
		Endpoint: cfg.Telemetry.Endpoint,
		Service: telemetry.Service{
			Version:     Version,
			BotName:     cfg.Bot.Name,
			OctaneHost:  cfg.Octane.Host,
			SharedSpace: cfg.Octane.SharedSpace,
			Workspace:   cfg.Octane.Workspace,
		},
	}
}

func (a *app) teardown(cmd *cobra.Command, _ []string) {
	if cmd.Annotations[skipConfig] == "true" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	telemetry.Shutdown(ctx)
	_ = a.logger.Sync()
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
