package batch

import "github.com/heartmarshall/laudo-backend/internal/domain"

// ReleaseResult is the released batch with the assessments opened for it.
type ReleaseResult struct {
	Batch       domain.Batch
	Assessments []domain.Assessment
}

// AssessmentResult is an updated assessment and its batch after recomputation.
type AssessmentResult struct {
	Assessment domain.Assessment
	Batch      domain.Batch
}
