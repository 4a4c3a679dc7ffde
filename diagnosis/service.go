// Package diagnosis manages the review lifecycle of produced diagnoses.
//
// A record is created pending and moves through reviewed to approved or
// rejected. Approved and rejected are terminal: once reached, no further
// transition is accepted.
//
// Information Hiding:
// - Storage interaction hidden behind the service
// - Transition rules internalized
package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/richinex/radiant/model"
	"github.com/richinex/radiant/storage"
)

var (
	// ErrInvalidStatus marks a status value outside the four defined ones.
	ErrInvalidStatus = errors.New("invalid diagnosis status")

	// ErrNotFound marks an unknown diagnosis id.
	ErrNotFound = errors.New("diagnosis not found")

	// ErrTerminalStatus marks a transition attempted from a terminal state.
	ErrTerminalStatus = errors.New("diagnosis status is terminal")
)

// Service drives the diagnosis lifecycle over a store.
type Service struct {
	store storage.DiagnosisStore
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

// NewService creates a lifecycle service.
func NewService(store storage.DiagnosisStore, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With().Str("component", "diagnosis").Logger(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Create stores a new pending record for the result and returns it.
func (s *Service) Create(ctx context.Context, patientID string, result model.ReasoningResult) (model.DiagnosisRecord, error) {
	rec := model.DiagnosisRecord{
		ID:        s.newID(),
		PatientID: patientID,
		Result:    result,
		Status:    model.StatusPending,
		CreatedAt: s.now().UTC(),
	}

	if err := s.store.Put(ctx, rec); err != nil {
		return model.DiagnosisRecord{}, fmt.Errorf("failed to create diagnosis: %w", err)
	}

	s.log.Info().Str("id", rec.ID).Str("patient", patientID).Msg("diagnosis created")
	return rec, nil
}

// SetStatus transitions a record to the given status, recording the
// reviewer. Only the four defined status values are accepted; terminal
// records refuse every transition. Status and reviewer persist atomically
// and no partial mutation happens on any error path.
func (s *Service) SetStatus(ctx context.Context, id, status, reviewer string) error {
	parsed, err := model.ParseStatus(status)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	// The store refuses to touch terminal rows, so the write itself is the
	// guard. Concurrent reviewers cannot both win.
	found, err := s.store.UpdateStatus(ctx, id, parsed, reviewer)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if !found {
		rec, err := s.store.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load diagnosis: %w", err)
		}
		if rec == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return fmt.Errorf("%w: %q is %s", ErrTerminalStatus, id, rec.Status)
	}

	s.log.Info().Str("id", id).Str("status", status).Str("reviewer", reviewer).
		Msg("diagnosis status updated")
	return nil
}

// Get returns a record by id.
func (s *Service) Get(ctx context.Context, id string) (model.DiagnosisRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return model.DiagnosisRecord{}, fmt.Errorf("failed to load diagnosis: %w", err)
	}
	if rec == nil {
		return model.DiagnosisRecord{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return *rec, nil
}

// ListByPatient returns a patient's records, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]model.DiagnosisRecord, error) {
	return s.store.ListByPatient(ctx, patientID)
}

// Stats returns record counts per status.
func (s *Service) Stats(ctx context.Context) (map[model.Status]int, error) {
	return s.store.Stats(ctx)
}
