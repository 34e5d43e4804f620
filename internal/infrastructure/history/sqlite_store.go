// Package history persists pipeline run summaries.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/ports"
)

// timestampLayout sorts lexically in chronological order.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// SQLiteStore persists runs in a SQLite database. When the database cannot
// be opened it degrades to a JSONL FileStore next to it.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	fallback *FileStore
	mu       sync.Mutex
	now      func() time.Time
}

// NewSQLiteStore creates (or opens) the database at path.
func NewSQLiteStore(path string) *SQLiteStore {
	store := &SQLiteStore{path: path, now: time.Now}
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		store.fallback = NewFileStore(fallbackPath(path))
		return store
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		store.fallback = NewFileStore(fallbackPath(path))
		return store
	}
	db.SetMaxOpenConns(1)
	store.db = db
	if err := store.init(); err != nil {
		_ = db.Close()
		store.db = nil
		store.fallback = NewFileStore(fallbackPath(path))
	}
	return store
}

var _ ports.RunHistoryRepository = (*SQLiteStore)(nil)

func fallbackPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".jsonl"
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		goal TEXT,
		outcome TEXT,
		stage TEXT,
		detail TEXT,
		plan_json TEXT,
		missing TEXT,
		executed INTEGER,
		success INTEGER,
		duration_ms INTEGER
	)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS runs_timestamp ON runs(timestamp)`)
	return err
}

// Degraded reports whether the store fell back to the JSONL file.
func (s *SQLiteStore) Degraded() bool {
	return s.db == nil
}

// Save inserts or replaces a record by ID.
func (s *SQLiteStore) Save(record domain.RunRecord) error {
	if s.db == nil {
		return s.fallback.Save(record)
	}
	missing, err := json.Marshal(record.Missing)
	if err != nil {
		return fmt.Errorf("encode missing commands: %w", err)
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`INSERT OR REPLACE INTO runs
		(id, timestamp, goal, outcome, stage, detail, plan_json, missing, executed, success, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Timestamp.UTC().Format(timestampLayout),
		record.Goal,
		record.Outcome,
		string(record.Stage),
		record.Detail,
		record.PlanJSON,
		string(missing),
		boolToInt(record.Executed),
		boolToInt(record.Success),
		record.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Records returns runs newest first. A zero limit returns everything; search
// matches goal, outcome, detail and plan text.
func (s *SQLiteStore) Records(limit int, search string) ([]domain.RunRecord, error) {
	if s.db == nil {
		return s.fallback.Records(limit, search)
	}
	builder := strings.Builder{}
	builder.WriteString("SELECT id, timestamp, goal, outcome, stage, detail, plan_json, missing, executed, success, duration_ms FROM runs")
	var args []interface{}
	if search != "" {
		like := "%" + search + "%"
		builder.WriteString(" WHERE goal LIKE ? OR outcome LIKE ? OR detail LIKE ? OR plan_json LIKE ?")
		args = append(args, like, like, like, like)
	}
	builder.WriteString(" ORDER BY timestamp DESC")
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := s.db.Query(builder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var ts, stage, missing string
		var executed, success int
		if err := rows.Scan(&rec.ID, &ts, &rec.Goal, &rec.Outcome, &stage, &rec.Detail, &rec.PlanJSON, &missing, &executed, &success, &rec.DurationMS); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timestampLayout, ts); err == nil {
			rec.Timestamp = t
		}
		rec.Stage = domain.StageKind(stage)
		if missing != "" && missing != "null" {
			_ = json.Unmarshal([]byte(missing), &rec.Missing)
		}
		rec.Executed = executed == 1
		rec.Success = success == 1
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear deletes all runs.
func (s *SQLiteStore) Clear() error {
	if s.db == nil {
		return s.fallback.Clear()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM runs")
	return err
}

// ExportJSON writes every run to dest as JSON lines.
func (s *SQLiteStore) ExportJSON(dest string) error {
	records, err := s.Records(0, "")
	if err != nil {
		return err
	}
	return writeJSONL(dest, records)
}

// PruneOlderThan deletes runs older than days. Zero or negative keeps everything.
func (s *SQLiteStore) PruneOlderThan(days int) error {
	if days <= 0 {
		return nil
	}
	if s.db == nil {
		return s.fallback.PruneOlderThan(days)
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour).UTC().Format(timestampLayout)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM runs WHERE timestamp < ?", cutoff)
	return err
}

// Path returns the store location actually in use.
func (s *SQLiteStore) Path() string {
	if s.db == nil {
		return s.fallback.Path()
	}
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
