package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for politecrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "politecrawl",
		Short: "Respectful web crawler with robots.txt, rate limit and privacy compliance",
		Long: `politecrawl fetches and crawls web sites politely.

Every request is checked against the host's robots.txt, spaced by a
per-host rate limiter that backs off on 429 and 503 responses, and every
extracted field is classified and filtered by privacy collection rules
before it is stored.

Settings are read from .politecrawl (see 'politecrawl init').`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.StringP("config", "c", "",
		"Configuration file path (default: .politecrawl in current or home directory)")
	flags.BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	flags.BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	flags.StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	flags.String("db-dir", "",
		"Database directory (default: XDG data directory)")
	flags.String("metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g., 127.0.0.1:9090)")

	cmd.AddCommand(NewFetchCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewRobotsCmd())
	cmd.AddCommand(NewEvaluateCmd())
	cmd.AddCommand(NewRetentionCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
