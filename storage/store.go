// Package storage provides SQLite persistence for diagnoses, case
// histories and chat sessions.
//
// Information Hiding:
// - Storage implementation details hidden behind interfaces
// - Callers depend on contracts, not SQLite specifics
package storage

import (
	"context"

	"github.com/richinex/radiant/llm"
	"github.com/richinex/radiant/model"
)

// DiagnosisStore persists diagnosis records. At most one successful
// write happens per call; no broader transactional guarantee is assumed.
type DiagnosisStore interface {
	// Put stores a new diagnosis record.
	Put(ctx context.Context, rec model.DiagnosisRecord) error

	// Get returns a record by id. Returns nil, nil if not found.
	Get(ctx context.Context, id string) (*model.DiagnosisRecord, error)

	// UpdateStatus persists status and reviewer in one conditional write.
	// Records already in a terminal status are never updated. The bool
	// reports whether a row changed.
	UpdateStatus(ctx context.Context, id string, status model.Status, reviewer string) (bool, error)

	// ListByPatient returns a patient's records, newest first.
	ListByPatient(ctx context.Context, patientID string) ([]model.DiagnosisRecord, error)

	// Stats returns record counts per status.
	Stats(ctx context.Context) (map[model.Status]int, error)
}

// CaseHistoryStore persists prior cases for precedent lookups.
type CaseHistoryStore interface {
	// SaveCase stores one prior case.
	SaveCase(ctx context.Context, rec model.CaseRecord) error

	// FindCases returns up to limit cases whose finding matches the term,
	// newest first.
	FindCases(ctx context.Context, term string, limit int) ([]model.CaseRecord, error)
}

// ConversationStore persists chat history per session.
type ConversationStore interface {
	// SaveConversation replaces a session's history.
	SaveConversation(ctx context.Context, sessionID string, history []llm.ChatMessage) error

	// LoadConversation returns a session's history.
	// Returns an empty slice if the session doesn't exist.
	LoadConversation(ctx context.Context, sessionID string) ([]llm.ChatMessage, error)
}
