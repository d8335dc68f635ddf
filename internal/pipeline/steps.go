package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/politecrawl/internal/database"
	"github.com/nao1215/politecrawl/internal/engine"
	"github.com/nao1215/politecrawl/internal/privacy"
	"github.com/nao1215/politecrawl/internal/report"
)

// ErrNoResult is returned by steps that run before a crawl produced a result.
var ErrNoResult = errors.New("no crawl result")

// Crawler crawls one host from a start URL. *engine.Engine implements it.
type Crawler interface {
	Crawl(ctx context.Context, startURL string) (*engine.CrawlResult, error)
}

// ItemStore persists collected items and the fetch log. *database.Store implements it.
type ItemStore interface {
	SaveItems(ctx context.Context, items []privacy.Item) error
	LogFetch(ctx context.Context, rec database.FetchRecord) error
}

// RetentionStore applies retention to stored items. *database.Store implements it.
type RetentionStore interface {
	ApplyRetention(ctx context.Context, policies map[privacy.Category]privacy.RetentionPolicy, now time.Time, anon *privacy.Anonymizer) (privacy.SweepResult, error)
}

// RetentionSource provides the active retention settings. *engine.Engine implements it.
type RetentionSource interface {
	RetentionPolicies() map[privacy.Category]privacy.RetentionPolicy
	Anonymizer() *privacy.Anonymizer
}

// CrawlStep crawls the job target.
type CrawlStep struct {
	crawler Crawler
}

// NewCrawlStep creates a CrawlStep.
func NewCrawlStep(c Crawler) *CrawlStep {
	return &CrawlStep{crawler: c}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls the target. A crawl that fails part way still stores its
// partial result in the job.
func (s *CrawlStep) Do(ctx context.Context, job *Job) error {
	res, err := s.crawler.Crawl(ctx, job.Target)
	if res != nil {
		job.Result = res
	}
	if err != nil {
		return fmt.Errorf("crawl %s: %w", job.Target, err)
	}
	return nil
}

// PersistStep saves collected items and logs every page fetch.
type PersistStep struct {
	store  ItemStore
	now    func() time.Time
	logger *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithPersistClock sets the time used for pages that were never fetched.
func WithPersistClock(now func() time.Time) PersistStepOption {
	return func(s *PersistStep) {
		s.now = now
	}
}

// WithPersistLogger sets the logger.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates a PersistStep.
func NewPersistStep(store ItemStore, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do writes the crawl result to the store.
func (s *PersistStep) Do(ctx context.Context, job *Job) error {
	if job.Result == nil {
		return ErrNoResult
	}

	now := s.now()
	for _, page := range job.Result.Pages {
		if err := s.store.LogFetch(ctx, database.NewPageRecord(job.Result.Host, page, now)); err != nil {
			return err
		}
	}
	if err := s.store.SaveItems(ctx, job.Result.Items); err != nil {
		return err
	}

	s.logger.Debug("crawl persisted",
		"host", job.Result.Host,
		"pages", len(job.Result.Pages),
		"items", len(job.Result.Items),
	)
	return nil
}

// RetentionStep applies the retention policies to the store.
type RetentionStep struct {
	store  RetentionStore
	source RetentionSource
	now    func() time.Time
	logger *slog.Logger
}

// RetentionStepOption configures a RetentionStep.
type RetentionStepOption func(*RetentionStep)

// WithRetentionClock sets the reference time of the sweep.
func WithRetentionClock(now func() time.Time) RetentionStepOption {
	return func(s *RetentionStep) {
		s.now = now
	}
}

// WithRetentionLogger sets the logger.
func WithRetentionLogger(logger *slog.Logger) RetentionStepOption {
	return func(s *RetentionStep) {
		s.logger = logger
	}
}

// NewRetentionStep creates a RetentionStep.
func NewRetentionStep(store RetentionStore, source RetentionSource, opts ...RetentionStepOption) *RetentionStep {
	s := &RetentionStep{
		store:  store,
		source: source,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Name returns the step name.
func (s *RetentionStep) Name() string {
	return "retention"
}

// Do sweeps the stored items with the policies active at this moment.
func (s *RetentionStep) Do(ctx context.Context, job *Job) error {
	res, err := s.store.ApplyRetention(ctx, s.source.RetentionPolicies(), s.now(), s.source.Anonymizer())
	if err != nil {
		return err
	}
	job.Sweep = &res

	if len(res.Purged) > 0 || len(res.Anonymized) > 0 {
		s.logger.Info("retention applied",
			"purged", len(res.Purged),
			"anonymized", len(res.Anonymized),
		)
	}
	return nil
}

// ReportStep writes the crawl result with a report.Writer.
type ReportStep struct {
	writer report.Writer
}

// NewReportStep creates a ReportStep.
func NewReportStep(w report.Writer) *ReportStep {
	return &ReportStep{writer: w}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the report.
func (s *ReportStep) Do(_ context.Context, job *Job) error {
	if job.Result == nil {
		return ErrNoResult
	}
	_, err := s.writer.Write(job.Result)
	return err
}

// DefaultPipeline builds the standard crawl pipeline for eng.
// Persistence and retention run only when store is non-nil; the report
// step runs only when w is non-nil. The pipeline continues after a failed
// crawl so that partial results are still stored and reported.
func DefaultPipeline(eng *engine.Engine, store *database.Store, w report.Writer, opts ...Option) *Pipeline {
	p := New(append([]Option{WithContinueOnError(true)}, opts...)...)

	p.AddStep(NewCrawlStep(eng))
	if store != nil {
		p.AddSteps(
			NewPersistStep(store, WithPersistLogger(p.logger)),
			NewRetentionStep(store, eng, WithRetentionLogger(p.logger)),
		)
	}
	if w != nil {
		p.AddStep(NewReportStep(w))
	}
	return p
}
