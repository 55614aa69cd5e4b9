package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/config"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/worker"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/metrics"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func job(name string, calls *[]string, res model.BatchResult) worker.Job {
	return func(ctx context.Context) model.BatchResult {
		*calls = append(*calls, name)
		res.Job = name
		return res
	}
}

func TestWorker_Tick(t *testing.T) {
	t.Parallel()
	clk := &clock{t: time.Date(2024, 3, 10, 1, 59, 0, 0, time.UTC)}
	var calls []string
	w, err := worker.New(config.Scheduler{RunAt: "02:00", Tick: time.Minute}, zap.NewNop(), []worker.Job{
		job(model.JobCorrectFines, &calls, model.BatchResult{}),
		job(model.JobGenerateFines, &calls, model.BatchResult{}),
		job(model.JobExpirePickups, &calls, model.BatchResult{}),
	}, worker.WithClock(clk.now))
	require.NoError(t, err)
	ctx := context.Background()

	require.False(t, w.Tick(ctx), "before the slot")
	require.Empty(t, calls)

	clk.t = clk.t.Add(time.Minute)
	require.True(t, w.Tick(ctx))
	require.Equal(t, []string{model.JobCorrectFines, model.JobGenerateFines, model.JobExpirePickups}, calls)

	clk.t = clk.t.Add(time.Minute)
	require.False(t, w.Tick(ctx), "once per day")

	clk.t = time.Date(2024, 3, 11, 2, 5, 0, 0, time.UTC)
	require.True(t, w.Tick(ctx), "next day, late tick still fires")
	require.Len(t, calls, 6)
}

func TestWorker_StartedAfterSlot(t *testing.T) {
	t.Parallel()
	clk := &clock{t: time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)}
	var calls []string
	w, err := worker.New(config.Scheduler{RunAt: "02:00"}, zap.NewNop(), []worker.Job{
		job(model.JobGenerateFines, &calls, model.BatchResult{}),
	}, worker.WithClock(clk.now))
	require.NoError(t, err)

	require.True(t, w.Tick(context.Background()))
	require.False(t, w.Tick(context.Background()))
	require.Len(t, calls, 1)
}

func TestWorker_RunOnceMetrics(t *testing.T) {
	t.Parallel()
	m := metrics.New()
	var calls []string
	w, err := worker.New(config.Scheduler{RunAt: "02:00"}, zap.NewNop(), []worker.Job{
		job(model.JobCorrectFines, &calls, model.BatchResult{Scanned: 2, Affected: 2}),
		job(model.JobGenerateFines, &calls, model.BatchResult{AlreadyRunning: true}),
		job(model.JobExpirePickups, &calls, model.BatchResult{Scanned: 3, Affected: 1, Skipped: 1, Errors: []string{"reservation 4: boom"}}),
	}, worker.WithMetrics(m))
	require.NoError(t, err)

	out := w.RunOnce(context.Background())
	require.Len(t, out, 3)

	require.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues(model.JobCorrectFines, "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues(model.JobGenerateFines, "already_running")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues(model.JobExpirePickups, "errors")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.JobItems.WithLabelValues(model.JobCorrectFines, "affected")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.JobItems.WithLabelValues(model.JobExpirePickups, "skipped")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.JobItems.WithLabelValues(model.JobExpirePickups, "failed")))
}

func TestWorker_RunOnceStopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	var calls []string
	w, err := worker.New(config.Scheduler{RunAt: "02:00"}, zap.NewNop(), []worker.Job{
		func(context.Context) model.BatchResult {
			calls = append(calls, "first")
			cancel()
			return model.BatchResult{Job: "first"}
		},
		job("second", &calls, model.BatchResult{}),
	})
	require.NoError(t, err)

	require.Len(t, w.RunOnce(ctx), 1)
	require.Equal(t, []string{"first"}, calls)
}

func TestNew_BadRunAt(t *testing.T) {
	t.Parallel()
	_, err := worker.New(config.Scheduler{RunAt: "25:99"}, zap.NewNop(), nil)
	require.Error(t, err)
}
