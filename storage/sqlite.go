// SQLite persistence.
//
// Information Hiding:
// - SQLite connection management hidden behind interfaces
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/radiant/llm"
	"github.com/richinex/radiant/model"
)

// SqliteStorage implements DiagnosisStore, CaseHistoryStore and
// ConversationStore over a single SQLite database.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Every pooled connection would get its own empty in-memory database.
	db.SetMaxOpenConns(1)

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS diagnoses (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			result TEXT NOT NULL,
			status TEXT NOT NULL,
			reviewer TEXT,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_diagnoses_patient
		ON diagnoses(patient_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_diagnoses_status
		ON diagnoses(status);

		CREATE TABLE IF NOT EXISTS case_histories (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			finding TEXT NOT NULL,
			diagnosis TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_cases_finding
		ON case_histories(finding);

		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			message_index INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE,
			UNIQUE(session_id, message_index)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session
		ON messages(session_id, message_index);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// DiagnosisStore implementation

// Put stores a new diagnosis record.
func (s *SqliteStorage) Put(ctx context.Context, rec model.DiagnosisRecord) error {
	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	var reviewer interface{}
	if rec.Reviewer != "" {
		reviewer = rec.Reviewer
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO diagnoses (id, patient_id, result, status, reviewer, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.PatientID,
		string(resultJSON),
		string(rec.Status),
		reviewer,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store diagnosis: %w", err)
	}
	return nil
}

// Get returns a record by id. Returns nil, nil if not found.
func (s *SqliteStorage) Get(ctx context.Context, id string) (*model.DiagnosisRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, patient_id, result, status, reviewer, created_at
		FROM diagnoses WHERE id = ?`, id)

	rec, err := scanDiagnosis(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateStatus persists status and reviewer in a single conditional write.
// Rows already in a terminal status are never touched; the bool reports
// whether a row actually changed.
func (s *SqliteStorage) UpdateStatus(ctx context.Context, id string, status model.Status, reviewer string) (bool, error) {
	var rev interface{}
	if reviewer != "" {
		rev = reviewer
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE diagnoses SET status = ?, reviewer = ? WHERE id = ? AND status NOT IN (?, ?)",
		string(status), rev, id, string(model.StatusApproved), string(model.StatusRejected))
	if err != nil {
		return false, fmt.Errorf("failed to update status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// ListByPatient returns a patient's records, newest first.
func (s *SqliteStorage) ListByPatient(ctx context.Context, patientID string) ([]model.DiagnosisRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_id, result, status, reviewer, created_at
		FROM diagnoses WHERE patient_id = ?
		ORDER BY created_at DESC, id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnoses: %w", err)
	}
	defer rows.Close()

	records := []model.DiagnosisRecord{} // Start with empty slice, not nil
	for rows.Next() {
		rec, err := scanDiagnosis(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating diagnoses: %w", err)
	}
	return records, nil
}

// Stats returns record counts per status.
func (s *SqliteStorage) Stats(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM diagnoses GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats[model.Status(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats: %w", err)
	}
	return stats, nil
}

// scanDiagnosis scans one diagnosis row via the given scan function.
func scanDiagnosis(scan func(dest ...interface{}) error) (*model.DiagnosisRecord, error) {
	var rec model.DiagnosisRecord
	var resultJSON, status string
	var reviewer sql.NullString
	var createdAt int64

	err := scan(&rec.ID, &rec.PatientID, &resultJSON, &status, &reviewer, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan diagnosis: %w", err)
	}

	if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
		return nil, fmt.Errorf("invalid result JSON in database: %w", err)
	}

	parsed, err := model.ParseStatus(status)
	if err != nil {
		// Invalid status in database indicates data corruption or schema
		// mismatch. Return error rather than silently defaulting.
		return nil, fmt.Errorf("invalid status %q in database: %w", status, err)
	}
	rec.Status = parsed

	if reviewer.Valid {
		rec.Reviewer = reviewer.String
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &rec, nil
}

// CaseHistoryStore implementation

// SaveCase stores one prior case.
func (s *SqliteStorage) SaveCase(ctx context.Context, rec model.CaseRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO case_histories (id, patient_id, finding, diagnosis, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID,
		rec.PatientID,
		rec.Finding,
		rec.Diagnosis,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store case: %w", err)
	}
	return nil
}

// FindCases returns up to limit cases whose finding matches the term,
// newest first. Matching is a case-insensitive substring match.
func (s *SqliteStorage) FindCases(ctx context.Context, term string, limit int) ([]model.CaseRecord, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_id, finding, diagnosis, created_at
		FROM case_histories
		WHERE lower(finding) LIKE ?
		ORDER BY created_at DESC, id
		LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	cases := []model.CaseRecord{} // Start with empty slice, not nil
	for rows.Next() {
		var rec model.CaseRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.PatientID, &rec.Finding, &rec.Diagnosis, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		cases = append(cases, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cases: %w", err)
	}
	return cases, nil
}

// ConversationStore implementation

func (s *SqliteStorage) ensureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (session_id) VALUES (?)",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

// SaveConversation replaces a session's history.
func (s *SqliteStorage) SaveConversation(ctx context.Context, sessionID string, history []llm.ChatMessage) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear old messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (session_id, message_index, role, content) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, msg := range history {
		_, err = stmt.ExecContext(ctx, sessionID, i, msg.Role, msg.Content)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = datetime('now') WHERE session_id = ?",
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadConversation returns a session's history.
// Returns an empty slice if the session doesn't exist.
func (s *SqliteStorage) LoadConversation(ctx context.Context, sessionID string) ([]llm.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content FROM messages WHERE session_id = ? ORDER BY message_index ASC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []llm.ChatMessage{} // Start with empty slice, not nil
	for rows.Next() {
		var msg llm.ChatMessage
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// Verify SqliteStorage implements all interfaces
var _ DiagnosisStore = (*SqliteStorage)(nil)
var _ CaseHistoryStore = (*SqliteStorage)(nil)
var _ ConversationStore = (*SqliteStorage)(nil)
