package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dunamismax/boothflow/internal/pipeline"
)

func newLayoutsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "layouts",
		Short: "List the collage layouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0)
			for _, name := range pipeline.LayoutNames() {
				l, err := pipeline.LookupLayout(name)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					l.Name,
					fmt.Sprintf("%dx%d", l.Width, l.Height),
					strconv.Itoa(l.Sources),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Layout", "Canvas", "Photos"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}

func newCheckCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the booth settings and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			b := cfg.Booth
			rows := [][]string{
				{"images", b.Folders.Images},
				{"thumbs", b.Folders.Thumbs},
				{"collage layout", b.Collage.Layout},
				{"collage frame", b.Collage.TakeFrame},
				{"ledger", ledgerSummary(b.Database.Enabled, b.Database.Backend)},
				{"ftp", strconv.FormatBool(b.FTP.Enabled)},
				{"video effect", b.Video.Effects},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows, nil))
			return nil
		},
	}
}

func ledgerSummary(enabled bool, backend string) string {
	if !enabled {
		return "disabled"
	}
	return backend
}
