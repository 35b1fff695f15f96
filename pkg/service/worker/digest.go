package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/domain/types"
	"github.com/secmon-lab/hackernyous/pkg/utils/errutil"
	"github.com/secmon-lab/hackernyous/pkg/utils/logging"
)

// DefaultCycleSpec runs a digest cycle every 30 minutes
const DefaultCycleSpec = "*/30 * * * *"

// CycleRunner runs one digest cycle
type CycleRunner interface {
	RunCycle(ctx context.Context, now time.Time) ([]*model.DigestResult, error)
}

// DigestWorker triggers digest cycles on a cron schedule
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - A tick that fires while the previous cycle is still running is skipped
type DigestWorker struct {
	runner CycleRunner
	spec   string
	loc    *time.Location
	now    func() time.Time
	cron   *cron.Cron
}

type Option func(*DigestWorker)

// WithClock overrides the clock passed to each cycle
func WithClock(now func() time.Time) Option {
	return func(w *DigestWorker) {
		w.now = now
	}
}

// NewDigestWorker creates a worker running cycles at the standard 5-field
// cron spec, evaluated in loc
func NewDigestWorker(runner CycleRunner, spec string, loc *time.Location, opts ...Option) (*DigestWorker, error) {
	if spec == "" {
		spec = DefaultCycleSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, goerr.Wrap(err, "invalid cycle schedule", goerr.V("spec", spec))
	}
	if loc == nil {
		loc = time.UTC
	}

	w := &DigestWorker{
		runner: runner,
		spec:   spec,
		loc:    loc,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start schedules the cycle. It does not block.
func (w *DigestWorker) Start(ctx context.Context) error {
	logger := cronLogger{logger: logging.Default()}
	w.cron = cron.New(
		cron.WithLocation(w.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := w.cron.AddFunc(w.spec, func() { w.RunOnce(ctx) }); err != nil {
		return goerr.Wrap(err, "failed to schedule digest cycle", goerr.V("spec", w.spec))
	}

	logging.Default().Info("Digest worker starting",
		"spec", w.spec,
		"location", w.loc.String())
	w.cron.Start()
	return nil
}

// Stop stops scheduling and waits for a running cycle to finish
func (w *DigestWorker) Stop() {
	if w.cron == nil {
		return
	}
	logging.Default().Info("Digest worker stopping")
	<-w.cron.Stop().Done()
	logging.Default().Info("Digest worker stopped")
}

// RunOnce runs a single cycle now and logs its outcome
func (w *DigestWorker) RunOnce(ctx context.Context) []*model.DigestResult {
	startTime := time.Now()

	results, err := w.runner.RunCycle(ctx, w.now().In(w.loc))
	if err != nil {
		errutil.Handle(ctx, err, "digest cycle did not complete")
	}

	failed := 0
	for _, r := range results {
		if r.Status.IsFailure() {
			failed++
		}
	}
	logging.Default().Info("Digest cycle completed",
		"users", len(results),
		"failed", failed,
		"sent", countStatus(results, types.DigestStatusSent),
		"duration", time.Since(startTime).String())

	return results
}

func countStatus(results []*model.DigestResult, status types.DigestStatus) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
