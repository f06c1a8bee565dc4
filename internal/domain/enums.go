package domain

// BatchStatus is the lifecycle state of a Batch.
type BatchStatus string

const (
	BatchStatusDraft     BatchStatus = "DRAFT"
	BatchStatusActive    BatchStatus = "ACTIVE"
	BatchStatusReady     BatchStatus = "READY"
	BatchStatusEmitting  BatchStatus = "EMITTING"
	BatchStatusEmitted   BatchStatus = "EMITTED"
	BatchStatusSent      BatchStatus = "SENT"
	BatchStatusCancelled BatchStatus = "CANCELLED"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusDraft, BatchStatusActive, BatchStatusReady, BatchStatusEmitting,
		BatchStatusEmitted, BatchStatusSent, BatchStatusCancelled:
		return true
	}
	return false
}

// AssessmentStatus is the state of one employee's assessment.
type AssessmentStatus string

const (
	AssessmentStatusStarted    AssessmentStatus = "STARTED"
	AssessmentStatusInProgress AssessmentStatus = "IN_PROGRESS"
	AssessmentStatusCompleted  AssessmentStatus = "COMPLETED"
	AssessmentStatusExcluded   AssessmentStatus = "EXCLUDED"
)

func (s AssessmentStatus) String() string { return string(s) }

func (s AssessmentStatus) IsValid() bool {
	switch s {
	case AssessmentStatusStarted, AssessmentStatusInProgress, AssessmentStatusCompleted, AssessmentStatusExcluded:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s AssessmentStatus) IsTerminal() bool {
	return s == AssessmentStatusCompleted || s == AssessmentStatusExcluded
}

// ReportStatus is the state of an emitted Report.
type ReportStatus string

const (
	ReportStatusEmitted ReportStatus = "EMITTED"
	ReportStatusSent    ReportStatus = "SENT"
)

func (s ReportStatus) String() string { return string(s) }

// OwnerKind distinguishes clinic-owned batches from standalone-entity batches.
type OwnerKind string

const (
	OwnerKindClinic OwnerKind = "CLINIC"
	OwnerKindEntity OwnerKind = "ENTITY"
)

func (k OwnerKind) String() string { return string(k) }

func (k OwnerKind) IsValid() bool {
	return k == OwnerKindClinic || k == OwnerKindEntity
}

// AuditAction names the operation recorded in an AuditEntry.
type AuditAction string

const (
	AuditActionBatchCreated          AuditAction = "BATCH_CREATED"
	AuditActionBatchReleased         AuditAction = "BATCH_RELEASED"
	AuditActionBatchRecomputed       AuditAction = "BATCH_RECOMPUTED"
	AuditActionBatchCancelled        AuditAction = "BATCH_CANCELLED"
	AuditActionAssessmentStarted     AuditAction = "ASSESSMENT_STARTED"
	AuditActionAssessmentCompleted   AuditAction = "ASSESSMENT_COMPLETED"
	AuditActionAssessmentExcluded    AuditAction = "ASSESSMENT_EXCLUDED"
	AuditActionReadinessEvaluated    AuditAction = "READINESS_EVALUATED"
	AuditActionEmissionScheduled     AuditAction = "EMISSION_SCHEDULED"
	AuditActionEmissionStarted       AuditAction = "EMISSION_STARTED"
	AuditActionEmissionSucceeded     AuditAction = "EMISSION_SUCCEEDED"
	AuditActionEmissionFailed        AuditAction = "EMISSION_FAILED"
	AuditActionEmissionRecovered     AuditAction = "EMISSION_RECOVERED"
	AuditActionReprocessRequested    AuditAction = "REPROCESS_REQUESTED"
	AuditActionReportSent            AuditAction = "REPORT_SENT"
	AuditActionImmutabilityViolation AuditAction = "IMMUTABILITY_VIOLATION"
)

func (a AuditAction) String() string { return string(a) }

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionBatchCreated, AuditActionBatchReleased, AuditActionBatchRecomputed, AuditActionBatchCancelled,
		AuditActionAssessmentStarted, AuditActionAssessmentCompleted, AuditActionAssessmentExcluded,
		AuditActionReadinessEvaluated, AuditActionEmissionScheduled, AuditActionEmissionStarted,
		AuditActionEmissionSucceeded, AuditActionEmissionFailed, AuditActionEmissionRecovered,
		AuditActionReprocessRequested, AuditActionReportSent, AuditActionImmutabilityViolation:
		return true
	}
	return false
}

// AuditOutcome is the result recorded alongside an AuditAction.
type AuditOutcome string

const (
	AuditOutcomeSuccess     AuditOutcome = "SUCCESS"
	AuditOutcomeNoop        AuditOutcome = "NOOP"
	AuditOutcomeAnomaly     AuditOutcome = "ANOMALY"
	AuditOutcomeAccepted    AuditOutcome = "ACCEPTED"
	AuditOutcomeBlocked     AuditOutcome = "BLOCKED"
	AuditOutcomeWarning     AuditOutcome = "WARNING"
	AuditOutcomeRejected    AuditOutcome = "REJECTED"
	AuditOutcomeRateLimited AuditOutcome = "RATE_LIMITED"
	AuditOutcomeConflict    AuditOutcome = "CONFLICT"
	AuditOutcomeTransient   AuditOutcome = "TRANSIENT_FAILURE"
)

func (o AuditOutcome) String() string { return string(o) }

func (o AuditOutcome) IsValid() bool {
	switch o {
	case AuditOutcomeSuccess, AuditOutcomeNoop, AuditOutcomeAnomaly, AuditOutcomeAccepted, AuditOutcomeBlocked,
		AuditOutcomeWarning, AuditOutcomeRejected, AuditOutcomeRateLimited, AuditOutcomeConflict, AuditOutcomeTransient:
		return true
	}
	return false
}

// SystemActor is recorded as the actor of automated transitions.
const SystemActor = "system"
