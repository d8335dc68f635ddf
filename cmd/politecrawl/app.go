package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/politecrawl/internal/config"
	"github.com/nao1215/politecrawl/internal/database"
	"github.com/nao1215/politecrawl/internal/engine"
	"github.com/nao1215/politecrawl/internal/log"
	"github.com/nao1215/politecrawl/internal/metrics"
	"github.com/nao1215/politecrawl/internal/report"
	"github.com/nao1215/politecrawl/internal/transport"
	"github.com/spf13/cobra"
)

// metricsShutdownTimeout bounds the graceful stop of the metrics server.
const metricsShutdownTimeout = 5 * time.Second

// app holds what a command needs: configuration, logger, metrics and the
// resources to release when the command ends.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	stdout io.Writer
	stderr io.Writer

	closers []func() error
}

// newApp loads the configuration file, applies command line flags on top
// and validates the result.
func newApp(cmd *cobra.Command) (*app, error) {
	configPath, err := stringFlag(cmd, "config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
	}

	if cfg.MetricsAddr != "" {
		a.serveMetrics()
	}
	if cfg.ConfigFilePath != "" {
		logger.Debug("configuration loaded", "path", cfg.ConfigFilePath)
	}
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("cleanup failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// serveMetrics exposes the Prometheus registry on cfg.MetricsAddr.
func (a *app) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())

	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "addr", a.cfg.MetricsAddr, "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", a.cfg.MetricsAddr)

	a.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// httpClient returns the client for content requests: through the
// embedded Tor daemon, through a SOCKS5 proxy, or direct.
func (a *app) httpClient(ctx context.Context) (*http.Client, error) {
	switch {
	case a.cfg.EmbeddedTor:
		return a.startEmbeddedTor(ctx)
	case a.cfg.ProxyAddress != "":
		if err := transport.CheckProxy(ctx, a.cfg.ProxyAddress); err != nil {
			return nil, fmt.Errorf("proxy check failed (make sure a SOCKS5 proxy is running at %s): %w",
				a.cfg.ProxyAddress, err)
		}
		a.logger.Info("proxy connection verified", "address", a.cfg.ProxyAddress)
		return transport.NewProxyClient(a.cfg.ProxyAddress, a.cfg.RequestTimeout)
	default:
		return transport.NewDirectClient(a.cfg.RequestTimeout), nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon and returns a client
// routed through it. The daemon is stopped by close.
func (a *app) startEmbeddedTor(ctx context.Context) (*http.Client, error) {
	fmt.Fprintln(a.stderr, "Starting embedded Tor daemon...")
	fmt.Fprintf(a.stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	tor := transport.NewEmbeddedTor(transport.WithStartupTimeout(a.cfg.TorStartupTimeout))
	if err := tor.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	a.onClose(func() error {
		a.logger.Info("stopping embedded Tor daemon")
		return tor.Stop()
	})

	a.logger.Info("embedded Tor daemon started", "socksAddr", tor.SocksAddr())
	return tor.NewClient(a.cfg.RequestTimeout)
}

// networkEngine builds an engine that fetches through httpClient.
func (a *app) networkEngine(ctx context.Context) (*engine.Engine, error) {
	client, err := a.httpClient(ctx)
	if err != nil {
		return nil, err
	}
	return a.newEngine(client)
}

// offlineEngine builds an engine for commands that only evaluate rules.
// Its fetcher is never used, so no proxy or Tor daemon is started.
func (a *app) offlineEngine() (*engine.Engine, error) {
	return a.newEngine(transport.NewDirectClient(a.cfg.RequestTimeout))
}

func (a *app) newEngine(client *http.Client) (*engine.Engine, error) {
	fetcher := transport.NewHTTPFetcher(client, transport.WithMaxBodySize(a.cfg.MaxBodySize))
	return engine.New(a.cfg, fetcher,
		engine.WithLogger(a.logger),
		engine.WithMetrics(a.metrics),
	)
}

// openStore opens the database in cfg.DBDir, or the XDG data directory
// when none is configured.
func (a *app) openStore() (*database.Store, error) {
	dir := a.cfg.DBDir
	if dir == "" {
		dir = config.XDGDataDir()
	}
	store, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.onClose(store.Close)
	a.logger.Debug("database opened", "path", store.Path())
	return store, nil
}

// output returns cfg.ReportFile, created with owner-only permissions, or
// the command's stdout when no file is configured.
func (a *app) output() (io.Writer, error) {
	if a.cfg.ReportFile == "" {
		return a.stdout, nil
	}

	dir := filepath.Dir(a.cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports list crawled URLs and field names.
	f, err := os.OpenFile(a.cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	a.onClose(f.Close)
	return f, nil
}

// reportWriter returns the writer for the requested format. Output goes
// to cfg.ReportFile when set, otherwise to the command's stdout.
func (a *app) reportWriter() (report.Writer, error) {
	output, err := a.output()
	if err != nil {
		return nil, err
	}

	switch {
	case a.cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion())), nil
	case a.cfg.MarkdownReport:
		return report.NewMarkdownWriter(output), nil
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(a.cfg.Verbose)), nil
	}
}
