package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/runboard/internal/command"
	"github.com/dshills/runboard/internal/config"
)

func newListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured scripts and their rendered commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return printScripts(cmd.OutOrStdout(), cfg)
		},
	}
}

// printScripts writes one row per script. Commands that cannot be rendered
// with the current parameters show the error instead.
func printScripts(w io.Writer, cfg *config.Config) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOMMAND\tPARAMS")

	for _, s := range cfg.Scripts {
		def := s.Definition()

		rendered, err := command.Render(s.Command, cfg.Params)
		if err != nil {
			rendered = "<" + err.Error() + ">"
		}

		params := "-"
		if names := command.Placeholders(s.Command); len(names) > 0 {
			params = strings.Join(names, ",")
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", def.ID, def.DisplayName(), rendered, params)
	}
	return tw.Flush()
}
