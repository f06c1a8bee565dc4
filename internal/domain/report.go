package domain

import "time"

// Report is the record of an emitted laudo. The PDF bytes live in storage;
// ContentHash is the integrity source of truth and is never recomputed.
type Report struct {
	ID              int64
	BatchID         int64
	ContentHash     string
	StorageLocation string
	Status          ReportStatus
	EmittedAt       time.Time
	SentAt          *time.Time
}

// BatchSnapshot is the frozen input handed to the renderer.
type BatchSnapshot struct {
	Batch       Batch
	Assessments []AssessmentView
	Counts      StatusCounts
	Readiness   ReadinessReport
	TakenAt     time.Time
}

// EmittedEvent is published to notification collaborators after a Report is durable.
type EmittedEvent struct {
	ReportID    int64     `json:"report_id"`
	BatchID     int64     `json:"batch_id"`
	BatchCode   string    `json:"batch_code"`
	ContentHash string    `json:"content_hash"`
	Location    string    `json:"location"`
	EmittedAt   time.Time `json:"emitted_at"`
}
