package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/politecrawl/internal/crawler"
	"github.com/nao1215/politecrawl/internal/database"
	"github.com/nao1215/politecrawl/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [flags] <url> [url...]",
		Short: "Fetch URLs while honoring robots.txt and per-host rate limits",
		Long: `Fetch requests each URL once through the respectful crawler.

Each request is checked against the host's robots.txt and waits for its
per-host rate limit slot. The outcome of every request is recorded in the
fetch log and summarized in the report.

Outcomes:
  success             the server answered with a 2xx status
  policy_denied       robots.txt disallows the URL for the user agent
  rate_limit_timeout  no request slot became free within --max-wait
  network_error       the request failed or the server answered with an error status

Examples:
  # Fetch a single page
  politecrawl fetch https://example.com/

  # Fetch several pages with a custom user agent and JSON output
  politecrawl fetch -u "mybot/1.0" -j https://example.com/a https://example.com/b`,
		Args: cobra.MinimumNArgs(1),
		RunE: runFetchCmd,
	}

	addFetchFlags(cmd)
	return cmd
}

// runFetchCmd executes the fetch command.
func runFetchCmd(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

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
	eng, err := a.networkEngine(ctx)
	if err != nil {
		return err
	}

	fetcher := pipeline.NewBatchFetcher(eng, a.cfg.UserAgent, a.cfg.MaxWait,
		pipeline.WithConcurrency(a.cfg.Workers),
		pipeline.WithBatchLogger(a.logger),
	)

	// Outcomes of an interrupted run are still recorded.
	logCtx := context.WithoutCancel(ctx)
	records := make([]database.FetchRecord, len(args))
	err = fetcher.FetchEach(ctx, args, func(i int, out crawler.FetchOutcome) {
		records[i] = database.NewFetchRecord(out, time.Now())
		if logErr := store.LogFetch(logCtx, records[i]); logErr != nil {
			a.logger.Warn("failed to record fetch", "url", out.URL, "error", logErr)
		}
	})
	if err != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("fetch failed: %w", err)
	}

	if _, err := w.WriteFetches(records); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("fetch interrupted: %w", ctx.Err())
	}
	return nil
}
