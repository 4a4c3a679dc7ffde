package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a diagnosis record. Exactly four
// wire-level values exist; anything else is rejected.
type Status string

const (
	StatusPending  Status = "pending"
	StatusReviewed Status = "reviewed"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus validates a wire-level status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusReviewed, StatusApproved, StatusRejected:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Terminal reports whether the status blocks further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CaseRecord is one prior case kept for precedent lookups.
type CaseRecord struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	Finding   string    `json:"finding"`
	Diagnosis string    `json:"diagnosis"`
	CreatedAt time.Time `json:"created_at"`
}

// DiagnosisRecord is one accepted diagnosis. Status is mutated only
// through the lifecycle service; the orchestrator never deletes records.
type DiagnosisRecord struct {
	ID        string          `json:"id"`
	PatientID string          `json:"patient_id"`
	Result    ReasoningResult `json:"result"`
	Status    Status          `json:"status"`
	Reviewer  string          `json:"reviewer,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
