// Package readiness decides whether a batch holds enough data for a laudo.
package readiness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type batchRepo interface {
	GetByID(ctx context.Context, id int64) (domain.Batch, error)
}

type assessmentRepo interface {
	ListByBatch(ctx context.Context, batchID int64) ([]domain.Assessment, error)
}

type eligibilityProvider interface {
	EligibleMembers(ctx context.Context, owner domain.Owner, cycle domain.Cycle) ([]string, error)
}

type anomalyDetector interface {
	DetectAnomalies(ctx context.Context, owner domain.Owner) ([]domain.Anomaly, error)
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service is the read-side readiness validator. It never writes.
type Service struct {
	log                *slog.Logger
	batches            batchRepo
	assessments        assessmentRepo
	eligibility        eligibilityProvider
	anomalies          anomalyDetector
	highExclusionRatio float64
}

// NewService creates a readiness validator.
func NewService(
	log *slog.Logger,
	batches batchRepo,
	assessments assessmentRepo,
	eligibility eligibilityProvider,
	anomalies anomalyDetector,
	highExclusionRatio float64,
) *Service {
	return &Service{
		log:                log.With("service", "readiness"),
		batches:            batches,
		assessments:        assessments,
		eligibility:        eligibility,
		anomalies:          anomalies,
		highExclusionRatio: highExclusionRatio,
	}
}

// Validate evaluates the batch with the given id.
func (s *Service) Validate(ctx context.Context, batchID int64) (domain.ReadinessReport, error) {
	b, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return domain.ReadinessReport{}, fmt.Errorf("validate batch %d: %w", batchID, err)
	}
	report, _, err := s.Inspect(ctx, b)
	return report, err
}

// Inspect evaluates an already loaded batch and also returns the assessment
// views the evaluation was based on, so a caller can freeze them.
func (s *Service) Inspect(ctx context.Context, b domain.Batch) (domain.ReadinessReport, []domain.AssessmentView, error) {
	assessments, err := s.assessments.ListByBatch(ctx, b.ID)
	if err != nil {
		return domain.ReadinessReport{}, nil, fmt.Errorf("list assessments of batch %d: %w", b.ID, err)
	}

	eligible, err := s.eligibility.EligibleMembers(ctx, b.Owner, b.Cycle())
	if err != nil {
		return domain.ReadinessReport{}, nil, fmt.Errorf("eligible members of batch %d: %w", b.ID, err)
	}

	// Anomalies only ever produce warnings, so a detector outage must not
	// stop an otherwise valid emission.
	anomalies, err := s.anomalies.DetectAnomalies(ctx, b.Owner)
	if err != nil {
		s.log.WarnContext(ctx, "anomaly detection unavailable",
			slog.Int64("batch_id", b.ID),
			slog.String("error", err.Error()),
		)
		anomalies = nil
	}

	views := make([]domain.AssessmentView, 0, len(assessments))
	for _, a := range assessments {
		views = append(views, a.View())
	}

	report := Evaluate(b, views, eligible, anomalies, s.highExclusionRatio)

	s.log.DebugContext(ctx, "readiness evaluated",
		slog.Int64("batch_id", b.ID),
		slog.Bool("blocking", report.Blocking),
		slog.Bool("eligible", report.Eligible),
		slog.Int("reasons", len(report.Reasons)),
	)

	return report, views, nil
}
