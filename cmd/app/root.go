package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd(config *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tour-crawler",
		Short: "Crawl tour operator sites and extract tour packages",
		Long: `tour-crawler walks a tour operator's site breadth-first from its seed URL,
recognises tour package pages and stores one record per package.

Sources are read from PostgreSQL (DATABASE_URL or POSTGRES_*). Use
"crawl --url ... --dry-run" to try a site without a database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewCrawlCmd(config))
	cmd.AddCommand(NewCrawlAllCmd(config))
	cmd.AddCommand(NewSourcesCmd())

	return cmd
}
