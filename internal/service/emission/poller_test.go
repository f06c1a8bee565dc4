package emission

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

func newTestPoller(env *workerEnv, workers int) *Poller {
	return NewPoller(slog.Default(), env.db, env.db, env.worker, env.clock, PollerConfig{
		Interval:   time.Minute,
		ClaimLimit: 10,
		Workers:    workers,
		StaleAfter: 15 * time.Minute,
	})
}

func TestPoller_Tick(t *testing.T) {
	t.Parallel()

	env := newWorkerEnv(t)
	env.db.put(scheduledBatch(1))

	future := readyBatch(2)
	later := t0.Add(time.Hour)
	future.ScheduledEmitAt = &later
	env.db.put(future)

	stale := scheduledBatch(3)
	startedAt := t0.Add(-20 * time.Minute)
	stale.Status, stale.EmissionStartedAt = domain.BatchStatusEmitting, &startedAt
	env.db.put(stale)

	res, err := newTestPoller(env, 2).Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	want := TickResult{Recovered: 1, Claimed: 2, Emitted: 2}
	if res != want {
		t.Errorf("Tick() = %+v, want %+v", res, want)
	}
	if got := env.db.batch(2); got.Status != domain.BatchStatusReady {
		t.Errorf("future batch status = %s, want READY", got.Status)
	}
	if got := env.db.entries(domain.AuditActionEmissionRecovered); len(got) != 1 || got[0].BatchID != 3 {
		t.Errorf("unexpected recovery audit %+v", got)
	}
}

func TestPoller_Tick_CountsFailures(t *testing.T) {
	t.Parallel()

	env := newWorkerEnv(t)
	env.db.put(scheduledBatch(1))
	env.db.put(scheduledBatch(2))
	env.renderer.errs = []error{errors.New("renderer: 502")}

	res, err := newTestPoller(env, 1).Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Claimed != 2 || res.Emitted != 1 || res.Failed != 1 {
		t.Errorf("unexpected tick result %+v", res)
	}
	if env.db.reportCount() != 1 {
		t.Errorf("report count = %d, want 1", env.db.reportCount())
	}
}

func TestPoller_Tick_Empty(t *testing.T) {
	t.Parallel()

	env := newWorkerEnv(t)
	res, err := newTestPoller(env, 1).Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res != (TickResult{}) {
		t.Errorf("Tick() = %+v, want zero", res)
	}
}

func TestPoller_Run_TicksOnInterval(t *testing.T) {
	t.Parallel()

	env := newWorkerEnv(t)
	env.db.claimDueCalls = make(chan struct{}, 4)
	env.db.put(scheduledBatch(1))
	p := newTestPoller(env, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	<-env.db.claimDueCalls
	if err := env.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiting for ticker: %v", err)
	}
	env.clock.Advance(time.Minute)
	select {
	case <-env.db.claimDueCalls:
	case <-ctx.Done():
		t.Fatal("second tick did not run")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if got := env.db.batch(1); got.Status != domain.BatchStatusEmitted {
		t.Errorf("status = %s, want EMITTED", got.Status)
	}
}
