package domain

import "time"

// Assessment is one employee's self-assessment inside a batch.
type Assessment struct {
	ID              int64
	BatchID         int64
	EmployeeRef     string
	Status          AssessmentStatus
	Scores          map[string]float64
	StartedAt       time.Time
	CompletedAt     *time.Time
	ExcludedAt      *time.Time
	ExclusionReason *string
}

// AssessmentView is the read-only terminal-state projection of an assessment
// consumed by the tracker, the validator and the render snapshot.
type AssessmentView struct {
	ID          int64
	EmployeeRef string
	State       TerminalState
	Scores      map[string]float64
}

// TerminalState collapses assessment statuses into what the batch lifecycle cares about.
type TerminalState string

const (
	TerminalStateCompleted TerminalState = "completed"
	TerminalStateExcluded  TerminalState = "excluded"
	TerminalStatePending   TerminalState = "pending"
)

// View projects an Assessment to its terminal state.
func (a Assessment) View() AssessmentView {
	return AssessmentView{
		ID:          a.ID,
		EmployeeRef: a.EmployeeRef,
		State:       TerminalStateOf(a.Status),
		Scores:      a.Scores,
	}
}

// TerminalStateOf maps a status to its terminal projection.
func TerminalStateOf(s AssessmentStatus) TerminalState {
	switch s {
	case AssessmentStatusCompleted:
		return TerminalStateCompleted
	case AssessmentStatusExcluded:
		return TerminalStateExcluded
	default:
		return TerminalStatePending
	}
}

// StatusCounts aggregates the assessments of one batch.
type StatusCounts struct {
	Total     int
	Completed int
	Excluded  int
}

// Active is the number of assessments that were not excluded.
func (c StatusCounts) Active() int { return c.Total - c.Excluded }

// Pending is the number of active assessments not yet completed.
func (c StatusCounts) Pending() int { return c.Active() - c.Completed }

// AllActiveCompleted is true when there is at least one active assessment and
// every one of them is completed.
func (c StatusCounts) AllActiveCompleted() bool {
	return c.Active() > 0 && c.Completed == c.Active()
}

// CompletionRatio is completed/active in [0,1]; 0 when nothing is active.
func (c StatusCounts) CompletionRatio() float64 {
	if c.Active() <= 0 {
		return 0
	}
	return float64(c.Completed) / float64(c.Active())
}

// ExclusionRatio is excluded/total in [0,1]; 0 for an empty batch.
func (c StatusCounts) ExclusionRatio() float64 {
	if c.Total <= 0 {
		return 0
	}
	return float64(c.Excluded) / float64(c.Total)
}

// CountViews tallies a set of projections.
func CountViews(views []AssessmentView) StatusCounts {
	var c StatusCounts
	for _, v := range views {
		c.Total++
		switch v.State {
		case TerminalStateCompleted:
			c.Completed++
		case TerminalStateExcluded:
			c.Excluded++
		}
	}
	return c
}
