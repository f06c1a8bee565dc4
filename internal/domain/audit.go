package domain

import "time"

// AuditEntry is an append-only record of a transition, a validation outcome
// or an emission attempt.
type AuditEntry struct {
	ID        int64
	BatchID   int64
	Actor     string
	Action    AuditAction
	Outcome   AuditOutcome
	Details   map[string]any
	CreatedAt time.Time
}

// AuditFilter narrows an audit query.
type AuditFilter struct {
	Action  *AuditAction
	Outcome *AuditOutcome
	Since   *time.Time
	Limit   int
}

// Employee is a member of an owner, used to decide cycle eligibility.
type Employee struct {
	ID            int64
	Ref           string
	Owner         Owner
	Active        bool
	HiredAt       time.Time
	DeactivatedAt *time.Time
}
