package main

import (
	"fmt"
	"time"

	"github.com/nao1215/politecrawl/internal/database"
	"github.com/nao1215/politecrawl/internal/privacy"
	"github.com/nao1215/politecrawl/internal/report"
	"github.com/spf13/cobra"
)

// NewRetentionCmd creates the retention command.
func NewRetentionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Apply retention policies to stored items",
		Long: `Retention purges or anonymizes stored items that are older than the
retention period of their category. Categories without a policy are kept.

The crawl command applies retention after every crawl; run this command
to apply it on a schedule or after changing the policies.

Examples:
  # Apply the configured policies
  politecrawl retention

  # Show what would change without modifying the database
  politecrawl retention --dry-run`,
		Args: cobra.NoArgs,
		RunE: runRetentionCmd,
	}

	cmd.Flags().Bool("dry-run", false,
		"Report what would be purged or anonymized without changing the database")

	return cmd
}

// runRetentionCmd executes the retention command.
func runRetentionCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	dryRun, err := cmd.Flags().GetBool("dry-run")
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
	eng, err := a.offlineEngine()
	if err != nil {
		return err
	}

	now := time.Now()
	policies := eng.RetentionPolicies()

	var (
		res       privacy.SweepResult
		remaining map[privacy.Category]int
	)
	if dryRun {
		items, err := store.ListItems(ctx, database.ItemFilter{})
		if err != nil {
			return fmt.Errorf("failed to list items: %w", err)
		}
		res = eng.Retention(items)
		remaining = make(map[privacy.Category]int)
		for _, item := range res.Kept {
			remaining[item.Category]++
		}
	} else {
		res, err = store.ApplyRetention(ctx, policies, now, eng.Anonymizer())
		if err != nil {
			return fmt.Errorf("failed to apply retention: %w", err)
		}
		remaining, err = store.CountItems(ctx)
		if err != nil {
			return fmt.Errorf("failed to count items: %w", err)
		}
		a.logger.Info("retention applied",
			"purged", len(res.Purged),
			"anonymized", len(res.Anonymized),
		)
	}

	if _, err := w.WriteRetention(report.NewRetentionReport(now, policies, res, remaining)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
