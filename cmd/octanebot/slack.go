package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/octanebot/octanebot/internal/config"
	"github.com/octanebot/octanebot/internal/slackbot"
)

func newSlackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "slack",
		Short: "Run the bot on Slack over Socket Mode",
		Long: `Connects to Slack over Socket Mode and answers mentions and direct
messages. The Octane catalog and forms load in the background; until then
commands that need them reply that initialization failed.

Health endpoints (/healthz, /readyz) are served on the health_port setting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSlack(cmd.Context())
		},
	}
}

func (a *app) runSlack(parent context.Context) error {
	svc, err := a.newServices()
	if err != nil {
		return err
	}
	b, err := slackbot.NewBot(slackbot.BotConfig{
		BotToken: a.cfg.Slack.BotToken,
		AppToken: a.cfg.Slack.AppToken,
		Debug:    a.cfg.Debug,
	}, svc.dispatcher, a.logger.Named("slack"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := svc.initializer.Run(gctx); err != nil {
			a.logger.Error("bot initialization incomplete", zap.Error(err))
		}
		return nil
	})
	if a.cfg.File != "" {
		g.Go(func() error {
			return config.WatchCredentials(gctx, a.cfg.File, svc.client.SetCredentials, a.logger.Named("config"))
		})
	}
	health := slackbot.NewHealthServer(b, svc.catalog.Ready, a.cfg.HealthPort, a.logger.Named("health"))
	g.Go(func() error { return health.Start(gctx) })
	g.Go(func() error {
		defer cancel()
		return b.Run(gctx)
	})

	a.logger.Info("octanebot started", zap.String("version", Version), zap.String("name", svc.dispatcher.BotName()))
	return g.Wait()
}
