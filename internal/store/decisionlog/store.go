// Package decisionlog persists the full audit trail of engine decisions,
// including every opinion that fed them.
package decisionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"quorum/internal/engine"
)

// Store writes decision records to a local sqlite database.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Record is one persisted decision row.
type Record struct {
	ID             int64            `json:"id"`
	TraceID        string           `json:"trace_id"`
	Timestamp      int64            `json:"ts"`
	Symbol         string           `json:"symbol"`
	Action         string           `json:"action"`
	Confidence     float64          `json:"confidence"`
	Exposure       float64          `json:"exposure"`
	ReasonCode     string           `json:"reason_code"`
	Path           string           `json:"path"`
	Silent         bool             `json:"silent"`
	HaltNewEntries bool             `json:"halt_new_entries"`
	DataQuality    float64          `json:"data_quality"`
	Opinions       []engine.Opinion `json:"opinions,omitempty"`
}

// Query filters List results. Zero fields match everything.
type Query struct {
	Symbol string
	Since  time.Time
	Limit  int
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("decision log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), `CREATE TABLE IF NOT EXISTS decision_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trace_id TEXT NOT NULL,
		ts INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL,
		confidence REAL NOT NULL,
		exposure REAL NOT NULL,
		reason_code TEXT NOT NULL,
		path TEXT NOT NULL,
		silent INTEGER NOT NULL DEFAULT 0,
		halt_new_entries INTEGER NOT NULL DEFAULT 0,
		data_quality REAL NOT NULL DEFAULT 0,
		opinions TEXT
	)`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(context.Background(),
		`CREATE INDEX IF NOT EXISTS idx_decision_logs_trace ON decision_logs(trace_id)`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(context.Background(),
		`CREATE INDEX IF NOT EXISTS idx_decision_logs_symbol_ts ON decision_logs(symbol, ts)`)
	return err
}

// Append stores one decision.
func (s *Store) Append(ctx context.Context, d engine.Decision) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("decision log store not initialized")
	}
	opinions, err := json.Marshal(d.Opinions)
	if err != nil {
		return 0, fmt.Errorf("encode opinions: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `INSERT INTO decision_logs
		(trace_id, ts, symbol, action, confidence, exposure, reason_code, path, silent, halt_new_entries, data_quality, opinions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.TraceID, d.DecidedAt.UnixMilli(), d.Symbol, string(d.Action), d.Confidence, d.Exposure,
		string(d.ReasonCode), string(d.Path), boolInt(d.Silent), boolInt(d.HaltNewEntries),
		d.DataQuality, string(opinions))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("decision log store not initialized")
	}
	var sb strings.Builder
	sb.WriteString(`SELECT id, trace_id, ts, symbol, action, confidence, exposure, reason_code, path,
		silent, halt_new_entries, data_quality, opinions FROM decision_logs`)
	var conds []string
	var args []any
	if q.Symbol != "" {
		conds = append(conds, "symbol = ?")
		args = append(args, strings.ToUpper(strings.TrimSpace(q.Symbol)))
	}
	if !q.Since.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, q.Since.UnixMilli())
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY ts DESC")
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sb.WriteString(" LIMIT ?")
	args = append(args, limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetByTrace returns all records sharing a trace ID, oldest first.
func (s *Store) GetByTrace(ctx context.Context, traceID string) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("decision log store not initialized")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, trace_id, ts, symbol, action, confidence, exposure,
		reason_code, path, silent, halt_new_entries, data_quality, opinions
		FROM decision_logs WHERE trace_id = ? ORDER BY ts ASC`, traceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var rec Record
		var silent, halt int
		var opinions sql.NullString
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.Timestamp, &rec.Symbol, &rec.Action,
			&rec.Confidence, &rec.Exposure, &rec.ReasonCode, &rec.Path,
			&silent, &halt, &rec.DataQuality, &opinions); err != nil {
			return nil, err
		}
		rec.Silent = silent != 0
		rec.HaltNewEntries = halt != 0
		if opinions.Valid && opinions.String != "" {
			// A corrupt opinions blob should not hide the rest of the row.
			_ = json.Unmarshal([]byte(opinions.String), &rec.Opinions)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
