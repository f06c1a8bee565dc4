package emission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

type processor interface {
	Process(ctx context.Context, b domain.Batch) (domain.Report, error)
}

// PollerConfig carries the poll loop tunables.
type PollerConfig struct {
	Interval   time.Duration
	ClaimLimit int
	Workers    int
	StaleAfter time.Duration
}

// Poller periodically recovers abandoned claims, claims due batches and
// fans them out to the worker.
type Poller struct {
	log     *slog.Logger
	batches batchRepo
	audit   auditRepo
	worker  processor
	clock   clockwork.Clock
	cfg     PollerConfig
	id      string
}

func NewPoller(log *slog.Logger, batches batchRepo, audit auditRepo, worker processor, clock clockwork.Clock, cfg PollerConfig) *Poller {
	id := uuid.NewString()
	return &Poller{
		log:     log.With("service", "poller", "poller_id", id),
		batches: batches,
		audit:   audit,
		worker:  worker,
		clock:   clock,
		cfg:     cfg,
		id:      id,
	}
}

// TickResult summarises one poll.
type TickResult struct {
	Recovered int
	Claimed   int
	Emitted   int
	Blocked   int
	Failed    int
	Conflicts int
}

// Run polls until ctx is cancelled. The first tick runs immediately.
func (p *Poller) Run(ctx context.Context) error {
	p.log.InfoContext(ctx, "poller started",
		slog.Duration("interval", p.cfg.Interval),
		slog.Int("workers", p.cfg.Workers),
	)

	ticker := p.clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.Tick(ctx); err != nil && ctx.Err() == nil {
			p.log.ErrorContext(ctx, "poll tick failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			p.log.InfoContext(ctx, "poller stopped")
			return nil
		case <-ticker.Chan():
		}
	}
}

// Tick runs one poll: recover stale claims, claim due batches, emit them.
// Per-batch failures are counted, not returned; they are already audited.
func (p *Poller) Tick(ctx context.Context) (TickResult, error) {
	var result TickResult
	now := p.clock.Now()

	recovered, err := p.batches.RecoverStale(ctx, now.Add(-p.cfg.StaleAfter))
	if err != nil {
		return result, fmt.Errorf("recover stale claims: %w", err)
	}
	result.Recovered = len(recovered)
	for _, b := range recovered {
		p.log.WarnContext(ctx, "recovered stale claim", slog.Int64("batch_id", b.ID))
		err := p.audit.Log(ctx, domain.AuditEntry{
			BatchID:   b.ID,
			Actor:     domain.SystemActor,
			Action:    domain.AuditActionEmissionRecovered,
			Outcome:   domain.AuditOutcomeSuccess,
			Details:   map[string]any{"stale_after": p.cfg.StaleAfter.String(), "poller_id": p.id},
			CreatedAt: now,
		})
		if err != nil {
			return result, fmt.Errorf("audit recovery of batch %d: %w", b.ID, err)
		}
	}

	claimed, err := p.batches.ClaimDue(ctx, now, p.cfg.ClaimLimit)
	if err != nil {
		return result, fmt.Errorf("claim due batches: %w", err)
	}
	result.Claimed = len(claimed)
	if len(claimed) == 0 {
		return result, nil
	}

	var emitted, blocked, failed, conflicts atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, b := range claimed {
		g.Go(func() error {
			_, err := p.worker.Process(gctx, b)
			switch {
			case err == nil:
				emitted.Add(1)
			case errors.Is(err, domain.ErrValidationBlocked):
				blocked.Add(1)
			case errors.Is(err, domain.ErrConcurrencyConflict):
				conflicts.Add(1)
			default:
				failed.Add(1)
				p.log.WarnContext(gctx, "emission failed",
					slog.Int64("batch_id", b.ID),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Emitted = int(emitted.Load())
	result.Blocked = int(blocked.Load())
	result.Failed = int(failed.Load())
	result.Conflicts = int(conflicts.Load())

	p.log.InfoContext(ctx, "poll tick done",
		slog.Int("recovered", result.Recovered),
		slog.Int("claimed", result.Claimed),
		slog.Int("emitted", result.Emitted),
		slog.Int("blocked", result.Blocked),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
