package emission

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

const tracerName = "github.com/heartmarshall/laudo-backend/internal/service/emission"

// Emission stages recorded on transient failures.
const (
	StageValidate = "validate"
	StageRender   = "render"
	StageStorage  = "storage"
	StagePersist  = "persist"
)

// Worker is the only code path that creates reports.
type Worker struct {
	log           *slog.Logger
	batches       batchRepo
	reports       reportRepo
	audit         auditRepo
	validator     validator
	renderer      renderer
	store         artifactStore
	notifier      notifier
	tx            txManager
	clock         clockwork.Clock
	cache         *lru.Cache[string, []byte]
	renderTimeout time.Duration
	tracer        trace.Tracer
}

// WorkerConfig carries the worker tunables.
type WorkerConfig struct {
	RenderTimeout   time.Duration
	RenderCacheSize int
}

// NewWorker creates a worker. Rendered bytes are cached by snapshot
// fingerprint so a storage failure can be retried without re-rendering.
func NewWorker(
	log *slog.Logger,
	batches batchRepo,
	reports reportRepo,
	audit auditRepo,
	validator validator,
	renderer renderer,
	store artifactStore,
	notifier notifier,
	tx txManager,
	clock clockwork.Clock,
	cfg WorkerConfig,
) (*Worker, error) {
	cache, err := lru.New[string, []byte](cfg.RenderCacheSize)
	if err != nil {
		return nil, fmt.Errorf("render cache: %w", err)
	}
	return &Worker{
		log:           log.With("service", "emission"),
		batches:       batches,
		reports:       reports,
		audit:         audit,
		validator:     validator,
		renderer:      renderer,
		store:         store,
		notifier:      notifier,
		tx:            tx,
		clock:         clock,
		cache:         cache,
		renderTimeout: cfg.RenderTimeout,
		tracer:        otel.Tracer(tracerName),
	}, nil
}

// Emit validates, claims and emits one batch. A batch that another worker
// already claimed or emitted yields domain.ErrConcurrencyConflict, which
// callers treat as a successful no-op.
func (w *Worker) Emit(ctx context.Context, batchID int64) (domain.Report, error) {
	ctx, span := w.tracer.Start(ctx, "emission.Emit", trace.WithAttributes(attribute.Int64("batch.id", batchID)))
	defer span.End()

	b, err := w.batches.GetByID(ctx, batchID)
	if err != nil {
		return domain.Report{}, err
	}

	switch b.Status {
	case domain.BatchStatusReady:
	case domain.BatchStatusEmitting, domain.BatchStatusEmitted, domain.BatchStatusSent:
		w.log.InfoContext(ctx, "batch already claimed",
			slog.Int64("batch_id", batchID),
			slog.String("status", string(b.Status)),
		)
		span.SetAttributes(attribute.Bool("emission.conflict", true))
		return domain.Report{}, fmt.Errorf("batch %d: %w", batchID, domain.ErrConcurrencyConflict)
	default:
		return domain.Report{}, &domain.TransitionError{From: b.Status, To: domain.BatchStatusEmitting}
	}

	report, _, err := w.validator.Inspect(ctx, b)
	if err != nil {
		return domain.Report{}, fmt.Errorf("validate batch %d: %w", batchID, err)
	}
	if report.Blocking {
		blocked := &domain.ValidationBlockedError{BatchID: batchID, Reasons: report.BlockingReasons()}
		if err := w.auditFailure(ctx, batchID, domain.AuditOutcomeBlocked, StageValidate, blocked); err != nil {
			return domain.Report{}, errors.Join(blocked, err)
		}
		return domain.Report{}, blocked
	}

	claimed, err := w.batches.Claim(ctx, batchID, w.clock.Now())
	if err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			w.log.InfoContext(ctx, "batch already claimed", slog.Int64("batch_id", batchID))
			span.SetAttributes(attribute.Bool("emission.conflict", true))
		}
		return domain.Report{}, err
	}

	return w.Process(ctx, claimed)
}

// Process emits a batch the caller has already claimed (status EMITTING).
// Every failure returns the claim: transient ones keep the schedule so the
// next poll retries, a blocked re-validation clears it.
func (w *Worker) Process(ctx context.Context, b domain.Batch) (domain.Report, error) {
	ctx, span := w.tracer.Start(ctx, "emission.Process", trace.WithAttributes(
		attribute.Int64("batch.id", b.ID),
		attribute.String("batch.code", b.Code),
	))
	defer span.End()

	rep, err := w.process(ctx, b)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Report{}, err
	}
	span.SetAttributes(attribute.Int64("report.id", rep.ID))
	return rep, nil
}

func (w *Worker) process(ctx context.Context, b domain.Batch) (domain.Report, error) {
	// Re-validate on data read after the claim; the render works on this
	// frozen snapshot, never on live rows.
	readiness, views, err := w.validator.Inspect(ctx, b)
	if err != nil {
		return domain.Report{}, w.transient(ctx, b, StageValidate, err)
	}
	if readiness.Blocking {
		return domain.Report{}, w.blocked(ctx, b, readiness)
	}

	snapshot := domain.BatchSnapshot{
		Batch:       b,
		Assessments: views,
		Counts:      domain.CountViews(views),
		Readiness:   readiness,
		TakenAt:     w.clock.Now(),
	}

	key := fingerprint(snapshot)
	artifact, err := w.render(ctx, key, snapshot)
	if errors.Is(err, domain.ErrRenderRejected) {
		return domain.Report{}, w.rejected(ctx, b, err)
	}
	if err != nil {
		return domain.Report{}, w.transient(ctx, b, StageRender, err)
	}

	sum := sha256.Sum256(artifact)
	contentHash := hex.EncodeToString(sum[:])

	reportID, err := w.reports.NextID(ctx)
	if err != nil {
		return domain.Report{}, w.transient(ctx, b, StagePersist, err)
	}

	location, err := w.storeArtifact(ctx, reportID, artifact)
	if err != nil {
		return domain.Report{}, w.transient(ctx, b, StageStorage, err)
	}

	emittedAt := w.clock.Now()
	var created domain.Report
	err = w.tx.RunInTx(ctx, func(ctx context.Context) error {
		// The batch must leave EMITTING before the report row exists: once a
		// report is present the batch row only accepts EMITTED->SENT.
		if _, err := w.batches.MarkEmitted(ctx, b.ID, emittedAt); err != nil {
			return err
		}
		created, err = w.reports.Create(ctx, domain.Report{
			ID:              reportID,
			BatchID:         b.ID,
			ContentHash:     contentHash,
			StorageLocation: location,
			Status:          domain.ReportStatusEmitted,
			EmittedAt:       emittedAt,
		})
		if err != nil {
			return err
		}
		return w.audit.Log(ctx, domain.AuditEntry{
			BatchID: b.ID,
			Actor:   domain.SystemActor,
			Action:  domain.AuditActionEmissionSucceeded,
			Outcome: domain.AuditOutcomeSuccess,
			Details: map[string]any{
				"report_id":    reportID,
				"content_hash": contentHash,
				"location":     location,
				"bytes":        len(artifact),
				"warnings":     reasonsDetail(readiness.Warnings()),
			},
			CreatedAt: emittedAt,
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) || errors.Is(err, domain.ErrAlreadyExists) {
			// A stale-claim recovery let another worker finish first.
			w.log.WarnContext(ctx, "emission lost race after render",
				slog.Int64("batch_id", b.ID),
				slog.String("error", err.Error()),
			)
			return domain.Report{}, fmt.Errorf("batch %d: %w", b.ID, domain.ErrConcurrencyConflict)
		}
		return domain.Report{}, w.transient(ctx, b, StagePersist, err)
	}
	w.cache.Remove(key)

	w.log.InfoContext(ctx, "report emitted",
		slog.Int64("batch_id", b.ID),
		slog.Int64("report_id", created.ID),
		slog.String("content_hash", contentHash),
		slog.String("location", location),
	)

	w.notify(ctx, b, created)
	return created, nil
}

func (w *Worker) render(ctx context.Context, key string, snapshot domain.BatchSnapshot) ([]byte, error) {
	if artifact, ok := w.cache.Get(key); ok {
		w.log.DebugContext(ctx, "render cache hit", slog.Int64("batch_id", snapshot.Batch.ID))
		return artifact, nil
	}

	ctx, span := w.tracer.Start(ctx, "emission.Render")
	defer span.End()

	renderCtx, cancel := context.WithTimeout(ctx, w.renderTimeout)
	defer cancel()

	artifact, err := w.renderer.Render(renderCtx, snapshot)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(artifact) == 0 {
		return nil, errors.New("renderer returned no bytes")
	}
	w.cache.Add(key, artifact)
	return artifact, nil
}

func (w *Worker) storeArtifact(ctx context.Context, reportID int64, artifact []byte) (string, error) {
	ctx, span := w.tracer.Start(ctx, "emission.Store", trace.WithAttributes(attribute.Int64("report.id", reportID)))
	defer span.End()

	location, err := w.store.Store(ctx, reportID, artifact)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return location, nil
}

// notify runs after commit; its failure is logged and never undoes emission.
func (w *Worker) notify(ctx context.Context, b domain.Batch, rep domain.Report) {
	event := domain.EmittedEvent{
		ReportID:    rep.ID,
		BatchID:     b.ID,
		BatchCode:   b.Code,
		ContentHash: rep.ContentHash,
		Location:    rep.StorageLocation,
		EmittedAt:   rep.EmittedAt,
	}
	if err := w.notifier.NotifyEmitted(context.WithoutCancel(ctx), event); err != nil {
		w.log.ErrorContext(ctx, "emission notification failed",
			slog.Int64("batch_id", b.ID),
			slog.Int64("report_id", rep.ID),
			slog.String("error", err.Error()),
		)
	}
}

// transient returns the claim keeping the schedule and records the failure.
func (w *Worker) transient(ctx context.Context, b domain.Batch, stage string, cause error) error {
	failure := &domain.TransientEmissionError{BatchID: b.ID, Stage: stage, Err: cause}

	w.log.WarnContext(ctx, "transient emission failure",
		slog.Int64("batch_id", b.ID),
		slog.String("stage", stage),
		slog.String("error", cause.Error()),
	)

	ctx = context.WithoutCancel(ctx)
	var errs []error
	if _, err := w.batches.ReleaseClaim(ctx, b.ID, false); err != nil {
		errs = append(errs, fmt.Errorf("release claim: %w", err))
	}
	if err := w.auditFailure(ctx, b.ID, domain.AuditOutcomeTransient, stage, cause); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{failure}, errs...)...)
	}
	return failure
}

// blocked returns the claim and drops the schedule: retrying cannot help
// until the data changes.
func (w *Worker) blocked(ctx context.Context, b domain.Batch, readiness domain.ReadinessReport) error {
	blocked := &domain.ValidationBlockedError{BatchID: b.ID, Reasons: readiness.BlockingReasons()}

	w.log.InfoContext(ctx, "claimed batch no longer eligible",
		slog.Int64("batch_id", b.ID),
		slog.Int("pending_members", readiness.PendingMemberCount),
	)

	ctx = context.WithoutCancel(ctx)
	var errs []error
	if _, err := w.batches.ReleaseClaim(ctx, b.ID, true); err != nil {
		errs = append(errs, fmt.Errorf("release claim: %w", err))
	}
	if err := w.auditFailure(ctx, b.ID, domain.AuditOutcomeBlocked, StageValidate, blocked); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{blocked}, errs...)...)
	}
	return blocked
}

// rejected returns the claim and drops the schedule: the renderer refused the
// snapshot, so the batch waits in the unscheduled stage for a reprocess.
func (w *Worker) rejected(ctx context.Context, b domain.Batch, cause error) error {
	failure := fmt.Errorf("batch %d: %s: %w", b.ID, StageRender, cause)

	w.log.ErrorContext(ctx, "renderer rejected snapshot",
		slog.Int64("batch_id", b.ID),
		slog.String("error", cause.Error()),
	)

	ctx = context.WithoutCancel(ctx)
	var errs []error
	if _, err := w.batches.ReleaseClaim(ctx, b.ID, true); err != nil {
		errs = append(errs, fmt.Errorf("release claim: %w", err))
	}
	if err := w.auditFailure(ctx, b.ID, domain.AuditOutcomeRejected, StageRender, cause); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{failure}, errs...)...)
	}
	return failure
}

func (w *Worker) auditFailure(ctx context.Context, batchID int64, outcome domain.AuditOutcome, stage string, cause error) error {
	details := map[string]any{"stage": stage, "error": cause.Error()}
	var blocked *domain.ValidationBlockedError
	if errors.As(cause, &blocked) {
		details["reasons"] = reasonsDetail(blocked.Reasons)
	}
	err := w.audit.Log(ctx, domain.AuditEntry{
		BatchID:   batchID,
		Actor:     domain.SystemActor,
		Action:    domain.AuditActionEmissionFailed,
		Outcome:   outcome,
		Details:   details,
		CreatedAt: w.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("audit emission failure: %w", err)
	}
	return nil
}
