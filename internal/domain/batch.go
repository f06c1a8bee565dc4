package domain

import (
	"fmt"
	"time"
)

// Owner identifies the organization a batch belongs to. A clinic-owned batch
// carries the clinic and the employer it serves; an entity-owned batch carries
// only the entity. Never both.
type Owner struct {
	Kind     OwnerKind
	ID       int64  // employer id for CLINIC, entity id for ENTITY
	ClinicID *int64 // set only for CLINIC
}

// Validate enforces the clinic/entity mutual exclusivity.
func (o Owner) Validate() error {
	var errs []FieldError
	if !o.Kind.IsValid() {
		errs = append(errs, FieldError{Field: "owner_kind", Message: "must be CLINIC or ENTITY"})
	}
	if o.ID <= 0 {
		errs = append(errs, FieldError{Field: "owner_id", Message: "required"})
	}
	switch o.Kind {
	case OwnerKindClinic:
		if o.ClinicID == nil || *o.ClinicID <= 0 {
			errs = append(errs, FieldError{Field: "clinic_id", Message: "required for clinic-owned batches"})
		}
	case OwnerKindEntity:
		if o.ClinicID != nil {
			errs = append(errs, FieldError{Field: "clinic_id", Message: "must be empty for entity-owned batches"})
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func (o Owner) String() string {
	if o.Kind == OwnerKindClinic && o.ClinicID != nil {
		return fmt.Sprintf("clinic:%d/employer:%d", *o.ClinicID, o.ID)
	}
	return fmt.Sprintf("entity:%d", o.ID)
}

// Batch is the unit of report emission: the assessments released together
// for one owner in one cycle.
type Batch struct {
	ID                int64
	Code              string
	OrderIndex        int
	Owner             Owner
	Status            BatchStatus
	CreatedAt         time.Time
	ReleasedAt        *time.Time
	ReadyAt           *time.Time
	ScheduledEmitAt   *time.Time
	EmissionStartedAt *time.Time
	EmittedAt         *time.Time
	SentAt            *time.Time
	CancelledAt       *time.Time
}

// Cycle returns the assessment cycle the batch represents.
func (b Batch) Cycle() Cycle {
	c := Cycle{OrderIndex: b.OrderIndex}
	if b.ReleasedAt != nil {
		c.ReleasedAt = *b.ReleasedAt
	}
	return c
}

// BatchCode builds the human-readable code of a batch.
func BatchCode(owner Owner, orderIndex int) string {
	return fmt.Sprintf("%s-%d-%04d", owner.Kind, owner.ID, orderIndex)
}

// Cycle identifies one assessment round of an owner.
type Cycle struct {
	OrderIndex int
	ReleasedAt time.Time
}

// statusRank orders the forward path. CANCELLED is outside the order.
var statusRank = map[BatchStatus]int{
	BatchStatusDraft:    0,
	BatchStatusActive:   1,
	BatchStatusReady:    2,
	BatchStatusEmitting: 3,
	BatchStatusEmitted:  4,
	BatchStatusSent:     5,
}

// Rank returns the position of s on the forward path, or -1 for CANCELLED.
func (s BatchStatus) Rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusDraft:    {BatchStatusActive, BatchStatusCancelled},
	BatchStatusActive:   {BatchStatusReady, BatchStatusCancelled},
	BatchStatusReady:    {BatchStatusEmitting, BatchStatusCancelled},
	BatchStatusEmitting: {BatchStatusEmitted, BatchStatusReady},
	BatchStatusEmitted:  {BatchStatusSent},
}

// CanTransitionTo reports whether from->to is an allowed edge.
//
// EMITTING->READY is the only backward edge: it releases a claim after a
// failed attempt and never follows a durable Report.
func (s BatchStatus) CanTransitionTo(to BatchStatus) bool {
	for _, next := range batchTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the batch can no longer change status.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusSent || s == BatchStatusCancelled
}

// IsFrozen reports whether the status implies a durable Report exists.
func (s BatchStatus) IsFrozen() bool {
	return s == BatchStatusEmitted || s == BatchStatusSent
}

// Transition validates from->to and returns a *TransitionError when illegal.
func Transition(from, to BatchStatus) error {
	if !from.CanTransitionTo(to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// PendingStage classifies a batch still waiting on emission or delivery.
type PendingStage string

const (
	PendingStageUnscheduled PendingStage = "unscheduled" // READY, no schedule (blocked or awaiting operator)
	PendingStageScheduled   PendingStage = "scheduled"   // READY with scheduled_emit_at
	PendingStageEmitting    PendingStage = "emitting"
	PendingStageDelivery    PendingStage = "awaiting_delivery" // EMITTED, not SENT
)

func (s PendingStage) IsValid() bool {
	switch s {
	case PendingStageUnscheduled, PendingStageScheduled, PendingStageEmitting, PendingStageDelivery:
		return true
	}
	return false
}

// PendingBatch is one row of the monitoring query.
type PendingBatch struct {
	Batch         Batch
	Stage         PendingStage
	Age           time.Duration
	LastFailureAt *time.Time
}

// PendingFilter narrows the monitoring query. A zero Limit uses the
// repository default.
type PendingFilter struct {
	Stage *PendingStage
	Owner *Owner
	Limit int
}

// PendingStageOf reports which monitoring stage b is in, if any.
func PendingStageOf(b Batch) (PendingStage, bool) {
	switch b.Status {
	case BatchStatusReady:
		if b.ScheduledEmitAt == nil {
			return PendingStageUnscheduled, true
		}
		return PendingStageScheduled, true
	case BatchStatusEmitting:
		return PendingStageEmitting, true
	case BatchStatusEmitted:
		return PendingStageDelivery, true
	}
	return "", false
}

// PendingSince returns the moment b entered its current pending stage.
func PendingSince(b Batch) time.Time {
	var at *time.Time
	switch b.Status {
	case BatchStatusReady:
		at = b.ReadyAt
	case BatchStatusEmitting:
		at = b.EmissionStartedAt
	case BatchStatusEmitted:
		at = b.EmittedAt
	}
	if at == nil {
		return b.CreatedAt
	}
	return *at
}
