package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of fetch records shown by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded fetch outcomes",
		Long: `History lists the most recent fetch outcomes recorded by the fetch and
crawl commands, newest first.

Examples:
  # Show the last 20 fetches
  politecrawl history

  # Show the last 100 fetches of one host as JSON
  politecrawl history --host example.com -n 100 -j`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("host", "", "Only show fetches of this host (host[:port])")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of records to show (0 shows all)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	host, err := cmd.Flags().GetString("host")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	w, err := a.reportWriter()
	if err != nil {
		return err
	}
	store, err := a.openStore()
	if err != nil {
		return err
	}

	records, err := store.FetchHistory(cmd.Context(), strings.ToLower(host), limit)
	if err != nil {
		return fmt.Errorf("failed to read fetch history: %w", err)
	}
	if _, err := w.WriteFetches(records); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
