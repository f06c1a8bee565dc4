package domain

// ReasonSeverity separates what blocks emission from what is advisory.
type ReasonSeverity string

const (
	ReasonSeverityBlocking ReasonSeverity = "BLOCKING"
	ReasonSeverityWarning  ReasonSeverity = "WARNING"
)

// ReasonCode identifies a readiness rule.
type ReasonCode string

const (
	ReasonNoCompletedWork    ReasonCode = "NO_COMPLETED_WORK"
	ReasonIncompleteCoverage ReasonCode = "INCOMPLETE_COVERAGE"
	ReasonHighExclusionRate  ReasonCode = "HIGH_EXCLUSION_RATE"
	ReasonAnomalySignal      ReasonCode = "ANOMALY_SIGNAL"
)

// Reason is one finding of the readiness validator.
type Reason struct {
	Code        ReasonCode     `json:"code"`
	Severity    ReasonSeverity `json:"severity"`
	Message     string         `json:"message"`
	EmployeeRef string         `json:"employee_ref,omitempty"`
}

// ReadinessReport classifies a batch as emit-eligible, eligible with warnings, or blocked.
type ReadinessReport struct {
	BatchID            int64    `json:"batch_id"`
	Status             string   `json:"status"`
	Eligible           bool     `json:"eligible"`
	Blocking           bool     `json:"blocking"`
	Reasons            []Reason `json:"reasons"`
	CompletionRatio    float64  `json:"completion_ratio"`
	PendingMemberCount int      `json:"pending_member_count"`
	Total              int      `json:"total"`
	Completed          int      `json:"completed"`
	Excluded           int      `json:"excluded"`
}

// Warnings returns the non-blocking reasons.
func (r ReadinessReport) Warnings() []Reason {
	var out []Reason
	for _, reason := range r.Reasons {
		if reason.Severity == ReasonSeverityWarning {
			out = append(out, reason)
		}
	}
	return out
}

// BlockingReasons returns the reasons that prevent emission.
func (r ReadinessReport) BlockingReasons() []Reason {
	var out []Reason
	for _, reason := range r.Reasons {
		if reason.Severity == ReasonSeverityBlocking {
			out = append(out, reason)
		}
	}
	return out
}

// Anomaly is a per-member signal raised by the anomaly collaborator.
type Anomaly struct {
	EmployeeRef string
	Severity    string
	Note        string
}
