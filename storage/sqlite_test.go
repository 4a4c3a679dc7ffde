package storage

import (
	"context"
	"testing"
	"time"

	"github.com/richinex/radiant/llm"
	"github.com/richinex/radiant/model"
)

func testStore(t *testing.T) *SqliteStorage {
	t.Helper()
	store, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("NewSqliteInMemory failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(id, patientID string) model.DiagnosisRecord {
	return model.DiagnosisRecord{
		ID:        id,
		PatientID: patientID,
		Result: model.ReasoningResult{
			PrimarySuggestion: "Lobar pneumonia",
			Trace: model.Trace{
				Observations:  []string{"left lower lobe consolidation"},
				Justification: "consistent with lookup results",
			},
		},
		Status:    model.StatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestPutAndGetRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	rec := testRecord("dx-1", "patient-7")
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "dx-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.PatientID != "patient-7" || got.Status != model.StatusPending {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Result.PrimarySuggestion != "Lobar pneumonia" {
		t.Errorf("result did not round-trip: %+v", got.Result)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("created_at mismatch: %v vs %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := testStore(t)

	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing id, got %+v", got)
	}
}

func TestUpdateStatus(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, testRecord("dx-1", "patient-7")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	found, err := store.UpdateStatus(ctx, "dx-1", model.StatusApproved, "drA")
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if !found {
		t.Fatal("expected existing id to be found")
	}

	got, err := store.Get(ctx, "dx-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != model.StatusApproved || got.Reviewer != "drA" {
		t.Errorf("status and reviewer not persisted together: %+v", got)
	}

	found, err = store.UpdateStatus(ctx, "missing", model.StatusApproved, "drA")
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if found {
		t.Error("expected missing id to report not found")
	}
}

func TestUpdateStatusSkipsTerminalRecords(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, testRecord("dx-1", "patient-7")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := store.UpdateStatus(ctx, "dx-1", model.StatusApproved, "drA"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	found, err := store.UpdateStatus(ctx, "dx-1", model.StatusRejected, "drB")
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if found {
		t.Error("terminal record must not be rewritten")
	}

	got, err := store.Get(ctx, "dx-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != model.StatusApproved || got.Reviewer != "drA" {
		t.Errorf("terminal record was mutated: %+v", got)
	}
}

func TestListByPatientNewestFirst(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	old := testRecord("dx-old", "patient-7")
	old.CreatedAt = time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	recent := testRecord("dx-new", "patient-7")
	other := testRecord("dx-other", "patient-9")

	for _, rec := range []model.DiagnosisRecord{old, recent, other} {
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	records, err := store.ListByPatient(ctx, "patient-7")
	if err != nil {
		t.Fatalf("ListByPatient failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "dx-new" || records[1].ID != "dx-old" {
		t.Errorf("expected newest first, got %s then %s", records[0].ID, records[1].ID)
	}

	empty, err := store.ListByPatient(ctx, "unknown")
	if err != nil {
		t.Fatalf("ListByPatient failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty slice for unknown patient, got %v", empty)
	}
}

func TestStatsCountsPerStatus(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	a := testRecord("dx-1", "p1")
	b := testRecord("dx-2", "p1")
	c := testRecord("dx-3", "p2")
	c.Status = model.StatusApproved

	for _, rec := range []model.DiagnosisRecord{a, b, c} {
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[model.StatusPending] != 2 || stats[model.StatusApproved] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestFindCasesMatchesSubstring(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	cases := []model.CaseRecord{
		{ID: "c1", PatientID: "p1", Finding: "right apical pneumothorax", Diagnosis: "tension pneumothorax", CreatedAt: time.Now().Add(-2 * time.Hour)},
		{ID: "c2", PatientID: "p2", Finding: "Pneumothorax with rib fractures", Diagnosis: "traumatic pneumothorax", CreatedAt: time.Now().Add(-time.Hour)},
		{ID: "c3", PatientID: "p3", Finding: "pleural effusion", Diagnosis: "heart failure", CreatedAt: time.Now()},
	}
	for _, rec := range cases {
		if err := store.SaveCase(ctx, rec); err != nil {
			t.Fatalf("SaveCase failed: %v", err)
		}
	}

	found, err := store.FindCases(ctx, "Pneumothorax", 10)
	if err != nil {
		t.Fatalf("FindCases failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(found))
	}
	if found[0].ID != "c2" {
		t.Errorf("expected newest match first, got %s", found[0].ID)
	}

	limited, err := store.FindCases(ctx, "pneumothorax", 1)
	if err != nil {
		t.Fatalf("FindCases failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}

	none, err := store.FindCases(ctx, "cardiomegaly", 10)
	if err != nil {
		t.Fatalf("FindCases failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no matches, got %v", none)
	}
}

func TestConversationSaveAndLoad(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	history := []llm.ChatMessage{
		llm.SystemMessage("you are a radiology assistant"),
		llm.UserMessage("what causes hilar enlargement?"),
		llm.AssistantMessage("common causes include lymphadenopathy and pulmonary hypertension"),
	}

	if err := store.SaveConversation(ctx, "sess-1", history); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}

	loaded, err := store.LoadConversation(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadConversation failed: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(loaded))
	}
	for i := range history {
		if loaded[i].Role != history[i].Role || loaded[i].Content != history[i].Content {
			t.Errorf("message %d did not round-trip: %+v", i, loaded[i])
		}
	}

	// Saving again replaces, not appends.
	if err := store.SaveConversation(ctx, "sess-1", history[:1]); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}
	loaded, err = store.LoadConversation(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadConversation failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Errorf("expected replacement to leave 1 message, got %d", len(loaded))
	}

	empty, err := store.LoadConversation(ctx, "unknown")
	if err != nil {
		t.Fatalf("LoadConversation failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty slice for unknown session, got %v", empty)
	}
}
