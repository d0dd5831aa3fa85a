package main

import (
	"context"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octanebot/octanebot/internal/console"
)

func newConsoleCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Talk to the bot from the terminal",
		Long: `Reads commands from standard input and prints the replies, using the
same Octane workspace as the chat bot. Useful to try commands without a
Slack workspace.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runConsole(cmd.Context(), name)
		},
	}
	cmd.Flags().StringVar(&name, "user", "", "user name to chat as (default: the login name)")
	return cmd
}

func (a *app) runConsole(parent context.Context, name string) error {
	svc, err := a.newServices()
	if err != nil {
		return err
	}
	if name == "" {
		name = loginName()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	initDone := make(chan struct{})
	go func() {
		defer close(initDone)
		if err := svc.initializer.Run(ctx); err != nil {
			a.logger.Error("bot initialization incomplete", zap.Error(err))
		}
	}()

	err = console.New(os.Stdin, os.Stdout, svc.dispatcher, name).Run(ctx)
	stop()
	<-initDone
	return err
}

func loginName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if n := os.Getenv("USER"); n != "" {
		return n
	}
	return "shell"
}
