package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Harvey-AU/tour-crawler/internal/db"
	"github.com/Harvey-AU/tour-crawler/internal/harvest"
	"github.com/spf13/cobra"
)

// NewSourcesCmd creates the sources command
func NewSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List active sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := db.InitFromEnvWithRetry(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer store.Close()

			sources, err := store.ListActiveSources(cmd.Context())
			if err != nil {
				return err
			}
			return printSources(cmd.OutOrStdout(), sources)
		},
	}
}

func printSources(out io.Writer, sources []harvest.Source) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSEED\tDEPTH\tPAGES\tROBOTS")
	for _, src := range sources {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%t\n",
			src.ID, src.Name, src.SeedURL, src.DepthLimit(), src.MaxPages, src.RespectRobots)
	}
	return w.Flush()
}
