package worker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/config"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/metrics"
)

const (
	outcomeOK      = "ok"
	outcomeErrors  = "errors"
	outcomeRunning = "already_running"
)

// Job is one nightly sweep.
type Job func(ctx context.Context) model.BatchResult

type Worker struct {
	log     *zap.Logger
	jobs    []Job
	metrics *metrics.Metrics

	tick   time.Duration
	hour   int
	minute int
	now    func() time.Time

	lastRun time.Time
}

type Option func(w *Worker)

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// New runs jobs in the given order once a day at cfg.RunAt (HH:MM, local time).
func New(cfg config.Scheduler, log *zap.Logger, jobs []Job, opts ...Option) (*Worker, error) {
	at, err := time.Parse("15:04", cfg.RunAt)
	if err != nil {
		return nil, errors.Wrap(err, "scheduler.runAt")
	}
	w := &Worker{
		log:    log.Named("worker"),
		jobs:   jobs,
		tick:   cfg.Tick,
		hour:   at.Hour(),
		minute: at.Minute(),
		now:    time.Now,
	}
	if w.tick <= 0 {
		w.tick = time.Minute
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run checks the schedule every tick until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started", zap.Duration("tick", w.tick), zap.Int("hour", w.hour), zap.Int("minute", w.minute))
	t := time.NewTicker(w.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped")
			return
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs the jobs if today's slot has come and they have not run today yet.
// It reports whether the jobs ran.
func (w *Worker) Tick(ctx context.Context) bool {
	now := w.now()
	slot := time.Date(now.Year(), now.Month(), now.Day(), w.hour, w.minute, 0, 0, now.Location())
	if now.Before(slot) || !w.lastRun.Before(slot) {
		return false
	}
	w.lastRun = now
	w.RunOnce(ctx)
	return true
}

// RunOnce runs every job in order. A failing job does not stop the next one.
func (w *Worker) RunOnce(ctx context.Context) []model.BatchResult {
	out := make([]model.BatchResult, 0, len(w.jobs))
	for _, job := range w.jobs {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		res := job(ctx)
		out = append(out, res)
		w.record(res)

		fields := []zap.Field{
			zap.String("job", res.Job),
			zap.Int("scanned", res.Scanned),
			zap.Int("affected", res.Affected),
			zap.Int("skipped", res.Skipped),
			zap.Duration("took", time.Since(start)),
		}
		switch {
		case res.AlreadyRunning:
			w.log.Info("job already running elsewhere", fields...)
		case len(res.Errors) > 0:
			w.log.Warn("job finished with errors", append(fields, zap.Strings("errors", res.Errors))...)
		default:
			w.log.Info("job finished", fields...)
		}
	}
	return out
}

func (w *Worker) record(res model.BatchResult) {
	if w.metrics == nil {
		return
	}
	outcome := outcomeOK
	switch {
	case res.AlreadyRunning:
		outcome = outcomeRunning
	case len(res.Errors) > 0:
		outcome = outcomeErrors
	}
	w.metrics.JobRuns.WithLabelValues(res.Job, outcome).Inc()
	w.metrics.JobItems.WithLabelValues(res.Job, "affected").Add(float64(res.Affected))
	w.metrics.JobItems.WithLabelValues(res.Job, "skipped").Add(float64(res.Skipped))
	w.metrics.JobItems.WithLabelValues(res.Job, "failed").Add(float64(len(res.Errors)))
}
