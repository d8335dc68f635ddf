package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/politecrawl/internal/config"
	"github.com/nao1215/politecrawl/internal/engine"
	"github.com/nao1215/politecrawl/internal/pipeline"
	"github.com/nao1215/politecrawl/internal/report"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [flags] <url> [url...]",
		Short: "Crawl sites and collect privacy-filtered fields",
		Long: `Crawl follows same-host links from each start URL.

Every page request honors robots.txt and the per-host rate limit. Fields
extracted from each page are classified and filtered by the collection
rules; allowed items are stored in the database and retention policies
are applied after each crawl. Several start URLs are crawled concurrently.

Changes to the configuration file are picked up while the crawl runs:
collection rules, retention policies and site settings are reloaded.

Examples:
  # Crawl a site two links deep
  politecrawl crawl -d 2 https://example.com/

  # Crawl through a local Tor SOCKS proxy and write a Markdown report
  politecrawl crawl -x 127.0.0.1:9050 -m -o report.md http://example.onion/`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawlCmd,
	}

	addFetchFlags(cmd)
	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum link depth to follow (0 fetches only the start page)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages requested per start URL")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
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

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	a.watchConfig(watchCtx, eng)

	// Pipelines run concurrently and share one output.
	out := report.NewSyncWriter(w)
	processor := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(eng, store, out, pipeline.WithLogger(a.logger))
		},
		pipeline.WithConcurrency(a.cfg.Workers),
		pipeline.WithBatchLogger(a.logger),
	)

	jobs, err := processor.ProcessBatch(ctx, args)
	if err != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("crawl failed: %w", err)
	}

	failed := 0
	for _, job := range jobs {
		if job.Err != nil {
			fmt.Fprintf(a.stderr, "crawl of %s: %v\n", job.Target, job.Err)
		}
		if job.Result == nil {
			failed++
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("crawl interrupted: %w", ctx.Err())
	}
	if failed == len(args) {
		return fmt.Errorf("all %d crawls failed", failed)
	}
	return nil
}

// watchConfig reloads collection rules, retention policies and site
// settings when the configuration file changes. It stops with ctx.
func (a *app) watchConfig(ctx context.Context, eng *engine.Engine) {
	path := a.cfg.ConfigFilePath
	if path == "" {
		return
	}
	go func() {
		err := config.Watch(ctx, path, a.logger, func(cf *config.File) {
			if err := eng.Reload(cf); err != nil {
				a.logger.Warn("configuration reload rejected", "path", path, "error", err)
				return
			}
			a.logger.Info("configuration reloaded", "path", path)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("configuration watch stopped", "path", path, "error", err)
		}
	}()
}
