package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/octanebot/octanebot/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective value of every setting",
		Long: `Prints every setting with the value resolved from flags, environment,
config file and defaults. Secrets are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if a.cfg.File != "" {
				fmt.Fprintf(w, "# %s\n", a.cfg.File)
			}
			for _, s := range config.Settings(a.v) {
				fmt.Fprintf(w, "%s\t%s\t# %s\n", s.Key, s.Value, s.Description)
			}
			return w.Flush()
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check that Octane settings and credentials are complete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	}

	cmd.AddCommand(show, validate)
	return cmd
}
