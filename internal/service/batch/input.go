package batch

import (
	"strings"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

const (
	maxReleaseMembers = 5000
	maxReasonLen      = 500
	maxScoreKeys      = 64
)

// CreateInput holds the parameters for creating a batch.
type CreateInput struct {
	Owner domain.Owner
}

func (i CreateInput) Validate() error {
	return i.Owner.Validate()
}

// ReleaseInput holds the parameters for releasing a DRAFT batch.
type ReleaseInput struct {
	BatchID      int64
	EmployeeRefs []string
}

// Validate checks all fields and collects all errors.
func (i ReleaseInput) Validate() error {
	var errs []domain.FieldError
	if i.BatchID <= 0 {
		errs = append(errs, domain.FieldError{Field: "batch_id", Message: "required"})
	}
	refs := normalizeRefs(i.EmployeeRefs)
	if len(refs) == 0 {
		errs = append(errs, domain.FieldError{Field: "employee_refs", Message: "at least one employee required"})
	}
	if len(refs) > maxReleaseMembers {
		errs = append(errs, domain.FieldError{Field: "employee_refs", Message: "max 5000 employees"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// CompleteInput holds the parameters for completing an assessment.
type CompleteInput struct {
	AssessmentID int64
	Scores       map[string]float64
}

// Validate checks all fields and collects all errors.
func (i CompleteInput) Validate() error {
	var errs []domain.FieldError
	if i.AssessmentID <= 0 {
		errs = append(errs, domain.FieldError{Field: "assessment_id", Message: "required"})
	}
	if len(i.Scores) > maxScoreKeys {
		errs = append(errs, domain.FieldError{Field: "scores", Message: "max 64 dimensions"})
	}
	for k := range i.Scores {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, domain.FieldError{Field: "scores", Message: "dimension name required"})
			break
		}
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// ExcludeInput holds the parameters for excluding an assessment.
type ExcludeInput struct {
	AssessmentID int64
	Reason       string
}

// Validate checks all fields and collects all errors.
func (i ExcludeInput) Validate() error {
	var errs []domain.FieldError
	if i.AssessmentID <= 0 {
		errs = append(errs, domain.FieldError{Field: "assessment_id", Message: "required"})
	}
	reason := strings.TrimSpace(i.Reason)
	if reason == "" {
		errs = append(errs, domain.FieldError{Field: "reason", Message: "required"})
	}
	if len(reason) > maxReasonLen {
		errs = append(errs, domain.FieldError{Field: "reason", Message: "max 500 characters"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// CancelInput holds the parameters for cancelling a batch.
type CancelInput struct {
	BatchID int64
	Reason  string
}

// Validate checks all fields and collects all errors.
func (i CancelInput) Validate() error {
	var errs []domain.FieldError
	if i.BatchID <= 0 {
		errs = append(errs, domain.FieldError{Field: "batch_id", Message: "required"})
	}
	if len(strings.TrimSpace(i.Reason)) > maxReasonLen {
		errs = append(errs, domain.FieldError{Field: "reason", Message: "max 500 characters"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// normalizeRefs normalizes, drops empties and deduplicates, keeping order.
func normalizeRefs(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = domain.NormalizeEmployeeRef(ref)
		if ref == "" {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}
