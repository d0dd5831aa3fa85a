package main

import (
	"github.com/octanebot/octanebot/internal/bot"
	"github.com/octanebot/octanebot/internal/catalog"
	"github.com/octanebot/octanebot/internal/commands"
	"github.com/octanebot/octanebot/internal/forms"
	"github.com/octanebot/octanebot/internal/octane"
	"github.com/octanebot/octanebot/internal/runner"
	"github.com/octanebot/octanebot/internal/telemetry"
)

// services is the bot core shared by the chat front ends.
type services struct {
	client      *octane.Client
	catalog     *catalog.Holder
	dispatcher  *commands.Dispatcher
	initializer *bot.Initializer
}

func (a *app) newServices() (*services, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := octane.NewClient(a.cfg.Octane, a.cfg.Credentials)
	if err != nil {
		return nil, err
	}
	client.HTTPClient.Transport = telemetry.WrapTransport(client.HTTPClient.Transport)

	run := runner.New(client, nil, a.logger.Named("runner"))
	holder := &catalog.Holder{}
	registry := forms.NewRegistry(forms.NewStore(a.cfg.Bot.StateFile), a.logger.Named("forms"))

	return &services{
		client:  client,
		catalog: holder,
		dispatcher: commands.New(commands.Config{
			API:     client,
			Runner:  run,
			Catalog: holder,
			Forms:   registry,
			BotName: a.cfg.Bot.Name,
			Logger:  a.logger.Named("commands"),
		}),
		initializer: &bot.Initializer{
			Source:  client,
			Runner:  run,
			Catalog: holder,
			Forms:   registry,
			Logger:  a.logger.Named("init"),
			Timeout: a.cfg.Bot.InitTimeout,
		},
	}, nil
}
