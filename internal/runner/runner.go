// Package runner executes a set of checks concurrently against one document
// and assembles their outcomes into a report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/storylint/internal/id/uuid"
	"github.com/JakeFAU/storylint/internal/lint"
	"github.com/JakeFAU/storylint/internal/metrics"
)

const tracerName = "github.com/JakeFAU/storylint/internal/runner"

// ErrDuplicateCheck is returned when two checks map to the same identifier.
var ErrDuplicateCheck = errors.New("duplicate check identifier")

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Runner fans a document out to every registered check.
type Runner struct {
	checks []lint.Check
	ids    []string
	logger *zap.Logger
	tracer trace.Tracer
	idgen  IDGenerator
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracer sets the tracer used for run and check spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithIDGenerator sets the run ID source.
func WithIDGenerator(gen IDGenerator) Option {
	return func(r *Runner) {
		if gen != nil {
			r.idgen = gen
		}
	}
}

// New builds a Runner over checks. Identifiers must be unique.
func New(checks []lint.Check, opts ...Option) (*Runner, error) {
	r := &Runner{
		checks: append([]lint.Check(nil), checks...),
		ids:    make([]string, 0, len(checks)),
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
		idgen:  uuid.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	seen := make(map[string]string, len(checks))
	for _, c := range r.checks {
		id := lint.Identifier(c.Name())
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %q from %s and %s", ErrDuplicateCheck, id, prev, c.Name())
		}
		seen[id] = c.Name()
		r.ids = append(r.ids, id)
	}
	return r, nil
}

// IDs returns the report identifiers in registration order.
func (r *Runner) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Run executes every check against doc and waits for all of them. The
// report always carries one entry per check.
func (r *Runner) Run(ctx context.Context, doc *lint.Document) *lint.Report {
	runID, err := r.idgen.NewID()
	if err != nil {
		r.logger.Warn("run id unavailable", zap.Error(err))
	}
	logger := r.logger.With(zap.String("run_id", runID), zap.String("url", doc.URL()))
	ctx, span := r.tracer.Start(ctx, "lint.run", trace.WithAttributes(
		attribute.String("lint.run_id", runID),
		attribute.String("lint.url", doc.URL()),
		attribute.Int("lint.checks", len(r.checks)),
	))
	defer span.End()

	start := time.Now()
	outcomes := make([]lint.Outcome, len(r.checks))
	var g errgroup.Group
	for i, c := range r.checks {
		g.Go(func() error {
			outcomes[i] = r.runCheck(ctx, logger, r.ids[i], c, doc)
			return nil
		})
	}
	_ = g.Wait()

	entries := make(map[string]lint.Outcome, len(outcomes))
	for i, out := range outcomes {
		entries[r.ids[i]] = out
	}
	report := lint.NewReport(entries)
	worst := report.Worst()
	metrics.ObserveRun(metrics.SanitizeSite(doc.URL()), string(worst))
	span.SetAttributes(attribute.String("lint.worst", string(worst)))
	logger.Info("lint run finished",
		zap.String("worst", string(worst)),
		zap.Strings("not_passed", report.Failed()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report
}

func (r *Runner) runCheck(
	ctx context.Context,
	logger *zap.Logger,
	id string,
	c lint.Check,
	doc *lint.Document,
) (out lint.Outcome) {
	ctx, span := r.tracer.Start(ctx, "lint.check", trace.WithAttributes(attribute.String("lint.check", id)))
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			out = lint.One(lint.PanicVerdict(rec))
			logger.Error("check panicked", zap.String("check", id), zap.Any("panic", rec))
		}
		status := out.Verdict().Status
		elapsed := time.Since(start)
		metrics.ObserveCheck(id, string(status), elapsed)
		span.SetAttributes(attribute.String("lint.status", string(status)))
		if status == lint.StatusFail {
			span.SetStatus(codes.Error, out.Verdict().Message.String())
		}
		span.End()
		logger.Debug("check finished",
			zap.String("check", id),
			zap.String("status", string(status)),
			zap.Duration("elapsed", elapsed),
		)
	}()
	return c.Run(ctx, doc)
}

// Summary renders the comma-joined identifiers that did not pass.
func Summary(report *lint.Report) string {
	return report.Summary()
}
