package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/octanebot/octanebot/internal/markup"
)

func newTranslateCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "translate [file]",
		Short: "Translate an Octane memo to Slack mrkdwn",
		Long: `Reads an Octane memo (HTML) from file, or standard input when no file
is given, and prints it as Slack mrkdwn. With --plain all markup is
stripped instead.`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			memo, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read memo: %w", err)
			}

			out := markup.ToSlack(string(memo))
			if plain {
				out = markup.PlainText(string(memo))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "strip all markup")
	return cmd
}
