// Package app builds the linter's long-lived services from configuration and
// runs them either once (CLI) or behind the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/JakeFAU/storylint/internal/api"
	"github.com/JakeFAU/storylint/internal/checks"
	"github.com/JakeFAU/storylint/internal/clock/system"
	"github.com/JakeFAU/storylint/internal/config"
	"github.com/JakeFAU/storylint/internal/cors"
	collyfetcher "github.com/JakeFAU/storylint/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/storylint/internal/fetcher/headless"
	"github.com/JakeFAU/storylint/internal/fetchpool"
	"github.com/JakeFAU/storylint/internal/headless/detector"
	"github.com/JakeFAU/storylint/internal/httpclient"
	"github.com/JakeFAU/storylint/internal/id/uuid"
	"github.com/JakeFAU/storylint/internal/imagegeom"
	"github.com/JakeFAU/storylint/internal/imageprobe"
	"github.com/JakeFAU/storylint/internal/lint"
	"github.com/JakeFAU/storylint/internal/page"
	"github.com/JakeFAU/storylint/internal/runner"
	"github.com/JakeFAU/storylint/internal/validator"
)

// App contains the application's dependencies.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	pool     *fetchpool.Pool
	client   *httpclient.Client
	pages    page.Fetcher
	runner   *runner.Runner
	ids      *uuid.Generator
	closers  []func()
	shutdown []func(context.Context) error
}

// Option customises Build.
type Option func(*App)

// WithPageFetcher replaces the configured story loader.
func WithPageFetcher(f page.Fetcher) Option {
	return func(a *App) {
		if f != nil {
			a.pages = f
		}
	}
}

// WithShutdown registers a hook run by Close, such as a tracer provider
// shutdown.
func WithShutdown(fn func(context.Context) error) Option {
	return func(a *App) {
		if fn != nil {
			a.shutdown = append(a.shutdown, fn)
		}
	}
}

// Build creates the application's dependencies.
func Build(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, ids: uuid.New()}

	a.pool = fetchpool.New(cfg.Pool.Size)
	a.client = httpclient.New(httpclient.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, a.pool, logger.Named("http"))

	for _, opt := range opts {
		opt(a)
	}
	if a.pages == nil {
		pages, err := a.pageFetcher()
		if err != nil {
			return nil, err
		}
		a.pages = pages
	}

	list := checks.Default(checks.Deps{
		Fetcher:   a.client,
		Validator: validator.NewStructural(logger.Named("validator")),
		CORS:      cors.NewValidator(a.client, cfg.Caches, logger.Named("cors")),
		Images:    imagegeom.NewValidator(imageprobe.New(a.client), logger.Named("images")),
		Clock:     system.New(),
		Logger:    logger.Named("checks"),
	})
	r, err := runner.New(list,
		runner.WithLogger(logger.Named("runner")),
		runner.WithTracer(otel.Tracer("github.com/JakeFAU/storylint")),
		runner.WithIDGenerator(a.ids),
	)
	if err != nil {
		return nil, fmt.Errorf("runner init failed: %w", err)
	}
	a.runner = r

	logger.Info("application built",
		zap.Int("checks", len(r.IDs())),
		zap.Int("pool_size", a.pool.Capacity()),
		zap.Int("caches", len(cfg.Caches)),
		zap.Bool("headless", cfg.Fetch.Headless),
	)
	return a, nil
}

func (a *App) pageFetcher() (page.Fetcher, error) {
	plain := collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.Fetch.UserAgent,
		Timeout:   a.cfg.FetchTimeout(),
	}, a.logger.Named("colly"))
	if !a.cfg.Fetch.Headless {
		return plain, nil
	}
	headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       a.cfg.Fetch.HeadlessMaxParallel,
		UserAgent:         a.cfg.Fetch.UserAgent,
		NavigationTimeout: a.cfg.NavTimeout(),
		WaitSelector:      "amp-story",
	}, a.logger.Named("headless"))
	if err != nil {
		return nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	a.closers = append(a.closers, headless.Close)
	a.logger.Info("using headless fetcher",
		zap.Int("max_parallel", a.cfg.Fetch.HeadlessMaxParallel),
		zap.Bool("always", a.cfg.Fetch.HeadlessAlways),
	)
	if a.cfg.Fetch.HeadlessAlways {
		return headless, nil
	}
	return detector.NewFetcher(plain, headless, nil, a.logger.Named("detector")), nil
}

// CheckIDs lists the report identifiers in registration order.
func (a *App) CheckIDs() []string {
	return a.runner.IDs()
}

// Lint loads rawURL and runs every check against it. Only a page that
// cannot be loaded is an error; check failures are part of the report.
func (a *App) Lint(ctx context.Context, rawURL string, headers http.Header) (*lint.Report, error) {
	doc, err := page.Load(ctx, a.pages, rawURL, headers)
	if err != nil {
		return nil, err
	}
	return a.runner.Run(ctx, doc), nil
}

// LintReader lints markup read from r as if it were served from baseURL.
func (a *App) LintReader(ctx context.Context, baseURL string, r io.Reader, headers http.Header) (*lint.Report, error) {
	doc, err := page.FromReader(baseURL, r, headers)
	if err != nil {
		return nil, err
	}
	return a.runner.Run(ctx, doc), nil
}

// Handler returns the HTTP API backed by this App.
func (a *App) Handler() http.Handler {
	return api.NewServer(a, a.ids, a.cfg, a.logger.Named("api")).Handler()
}

// Serve starts the HTTP API and blocks until ctx is canceled or a signal
// arrives.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close(shutdownCtx)
	return serveErr
}

// Close releases browsers and flushes observability.
func (a *App) Close(ctx context.Context) {
	for _, c := range a.closers {
		c()
	}
	for _, fn := range a.shutdown {
		if err := fn(ctx); err != nil {
			a.logger.Warn("shutdown hook failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
