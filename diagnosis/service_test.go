package diagnosis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/richinex/radiant/model"
	"github.com/richinex/radiant/storage"
)

func testService(t *testing.T) *Service {
	t.Helper()
	store, err := storage.NewSqliteInMemory()
	if err != nil {
		t.Fatalf("NewSqliteInMemory failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(store, zerolog.Nop())
}

func testResult() model.ReasoningResult {
	return model.ReasoningResult{
		PrimarySuggestion: "Right-sided pneumothorax",
		Trace: model.Trace{
			Observations:  []string{"apical lucency"},
			Justification: "matches clinical lookup",
		},
	}
}

func TestCreateStartsPending(t *testing.T) {
	svc := testService(t)

	rec, err := svc.Create(context.Background(), "patient-7", testResult())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected a generated id")
	}
	if rec.Status != model.StatusPending {
		t.Errorf("expected pending, got %s", rec.Status)
	}

	got, err := svc.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Result.PrimarySuggestion != "Right-sided pneumothorax" {
		t.Errorf("result not persisted: %+v", got.Result)
	}
}

func TestSetStatusTransitions(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "patient-7", testResult())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.SetStatus(ctx, rec.ID, "reviewed", "drA"); err != nil {
		t.Fatalf("pending -> reviewed failed: %v", err)
	}
	if err := svc.SetStatus(ctx, rec.ID, "approved", "drB"); err != nil {
		t.Fatalf("reviewed -> approved failed: %v", err)
	}

	got, err := svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != model.StatusApproved || got.Reviewer != "drB" {
		t.Errorf("unexpected final record: %+v", got)
	}
}

func TestTerminalStatusBlocksTransitions(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "patient-7", testResult())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.SetStatus(ctx, rec.ID, "approved", "drA"); err != nil {
		t.Fatalf("pending -> approved failed: %v", err)
	}

	err = svc.SetStatus(ctx, rec.ID, "rejected", "drB")
	if !errors.Is(err, ErrTerminalStatus) {
		t.Errorf("expected ErrTerminalStatus, got %v", err)
	}

	// The terminal record must be untouched.
	got, err := svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != model.StatusApproved || got.Reviewer != "drA" {
		t.Errorf("terminal record was mutated: %+v", got)
	}
}

func TestConcurrentReviewersOnlyOneWins(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "patient-7", testResult())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Two reviewers race to close out the same pending record.
	type attempt struct {
		status   string
		reviewer string
	}
	attempts := []attempt{{"approved", "drA"}, {"rejected", "drB"}}
	results := make([]error, len(attempts))

	var start, done sync.WaitGroup
	start.Add(1)
	for i, a := range attempts {
		done.Add(1)
		go func(i int, a attempt) {
			defer done.Done()
			start.Wait()
			results[i] = svc.SetStatus(ctx, rec.ID, a.status, a.reviewer)
		}(i, a)
	}
	start.Done()
	done.Wait()

	var winner int
	switch {
	case results[0] == nil && errors.Is(results[1], ErrTerminalStatus):
		winner = 0
	case results[1] == nil && errors.Is(results[0], ErrTerminalStatus):
		winner = 1
	default:
		t.Fatalf("expected exactly one transition to land, got %v and %v", results[0], results[1])
	}

	got, err := svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := attempts[winner]
	if string(got.Status) != want.status || got.Reviewer != want.reviewer {
		t.Errorf("record does not match the winning reviewer %+v: %+v", want, got)
	}
}

func TestSetStatusRejectsUnknownValues(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "patient-7", testResult())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.SetStatus(ctx, rec.ID, "bogus", "drA"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	// Same for a record in a terminal state: invalid values always fail.
	if err := svc.SetStatus(ctx, rec.ID, "approved", "drA"); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := svc.SetStatus(ctx, rec.ID, "bogus", "drA"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus on terminal record, got %v", err)
	}
}

func TestSetStatusUnknownID(t *testing.T) {
	svc := testService(t)

	err := svc.SetStatus(context.Background(), "missing", "approved", "drA")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStatsAndListByPatient(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "patient-7", testResult())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Create(ctx, "patient-7", testResult()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.SetStatus(ctx, first.ID, "approved", "drA"); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	records, err := svc.ListByPatient(ctx, "patient-7")
	if err != nil {
		t.Fatalf("ListByPatient failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[model.StatusApproved] != 1 || stats[model.StatusPending] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}
}
