package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/politecrawl/internal/crawler"
	"golang.org/x/sync/errgroup"
)

// defaultConcurrency is used when no positive worker count is configured.
const defaultConcurrency = 4

// BatchProcessor runs a fresh pipeline for each crawl target.
// It uses errgroup to manage goroutines and respect concurrency limits.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each target.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor or a BatchFetcher.
type BatchOption func(*batchSettings)

type batchSettings struct {
	concurrency int
	logger      *slog.Logger
}

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *batchSettings) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent workers.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *batchSettings) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func applyBatchOptions(opts []BatchOption) batchSettings {
	s := batchSettings{concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// NewBatchProcessor creates a new BatchProcessor.
// The pipelineFactory function is called once per target so that pipeline
// state never leaks between crawls.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	s := applyBatchOptions(opts)
	return &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     s.concurrency,
		logger:          s.logger,
	}
}

// ProcessBatch crawls every target through its own pipeline.
// Jobs are returned in target order, including failed ones; a job's Err
// holds its failure. The error return is non-nil only when ctx ended.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*Job, error) {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	jobs := make([]*Job, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		job := NewJob(target)
		jobs[i] = job

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				job.Cancelled = true
				return err
			}

			bp.logger.Info("crawling target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			if err := bp.pipelineFactory().Execute(ctx, job); err != nil {
				bp.logger.Warn("crawl failed",
					"target", target,
					"error", err,
				)
				// Other targets keep going; the error stays in the job.
				return nil
			}
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return jobs, err
}

// URLFetcher fetches one URL under the crawl policy. *engine.Engine implements it.
type URLFetcher interface {
	Fetch(ctx context.Context, rawURL, userAgent string, maxWait time.Duration) crawler.FetchOutcome
}

// BatchFetcher fetches a list of URLs with bounded concurrency. The
// worker count only bounds parallelism across hosts: the engine's rate
// limiter still spaces requests to the same host.
type BatchFetcher struct {
	fetcher     URLFetcher
	userAgent   string
	maxWait     time.Duration
	concurrency int
	logger      *slog.Logger
}

// NewBatchFetcher creates a BatchFetcher. An empty userAgent lets the
// fetcher use its configured one.
func NewBatchFetcher(fetcher URLFetcher, userAgent string, maxWait time.Duration, opts ...BatchOption) *BatchFetcher {
	s := applyBatchOptions(opts)
	return &BatchFetcher{
		fetcher:     fetcher,
		userAgent:   userAgent,
		maxWait:     maxWait,
		concurrency: s.concurrency,
		logger:      s.logger,
	}
}

// FetchAll fetches every URL and returns the outcomes in input order.
// Fetch failures are outcomes, not errors; URLs not started before ctx
// ended are reported as RateLimitTimeout outcomes and ctx.Err() is
// returned.
func (bf *BatchFetcher) FetchAll(ctx context.Context, urls []string) ([]crawler.FetchOutcome, error) {
	outcomes := make([]crawler.FetchOutcome, len(urls))
	err := bf.FetchEach(ctx, urls, func(i int, out crawler.FetchOutcome) {
		outcomes[i] = out
	})
	return outcomes, err
}

// FetchEach fetches every URL and calls fn with the index and outcome as
// each fetch finishes. fn is called from worker goroutines and must be
// safe for concurrent use.
func (bf *BatchFetcher) FetchEach(ctx context.Context, urls []string, fn func(int, crawler.FetchOutcome)) error {
	bf.logger.Info("starting batch fetch",
		"total_urls", len(urls),
		"concurrency", bf.concurrency,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.concurrency)

	for i, rawURL := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				fn(i, crawler.FetchOutcome{
					Status: crawler.RateLimitTimeout,
					State:  crawler.StateTimedOut,
					URL:    rawURL,
					Err:    err,
				})
				return err
			}

			out := bf.fetcher.Fetch(gctx, rawURL, bf.userAgent, bf.maxWait)
			bf.logger.Debug("fetched",
				"url", rawURL,
				"status", out.Status.String(),
				"waited", out.Waited,
			)
			fn(i, out)
			return nil
		})
	}

	return g.Wait()
}
