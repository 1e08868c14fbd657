// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/logging"
)

// DuckDBStore implements Store using DuckDB for persistent storage with
// analytical aggregation pushed into the database.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore opens a DuckDB database at the given path, initializes
// the schema, and returns a store backed by it. The store owns the
// database handle.
func NewDuckDBStore(ctx context.Context, path string) (*DuckDBStore, error) {
	// Ensure parent directory exists for the database file
	dbDir := filepath.Dir(path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dbDir, err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	s := &DuckDBStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// NewDuckDBStoreWithDB wraps an existing database handle and initializes
// the schema.
func NewDuckDBStoreWithDB(ctx context.Context, db *sql.DB) (*DuckDBStore, error) {
	s := &DuckDBStore{db: db}
	if err := s.createTables(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// createTables creates the event and summary tables if they don't exist.
func (s *DuckDBStore) createTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS security_events (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			session_id TEXT,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			description TEXT NOT NULL,
			metadata JSON,
			timestamp TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_events_timestamp ON security_events(timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_events_user_id ON security_events(user_id);
		CREATE INDEX IF NOT EXISTS idx_events_session_id ON security_events(session_id);
		CREATE INDEX IF NOT EXISTS idx_events_type ON security_events(type);
		CREATE INDEX IF NOT EXISTS idx_events_severity ON security_events(severity);

		CREATE TABLE IF NOT EXISTS security_summaries (
			session_id TEXT PRIMARY KEY,
			counts JSON NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`

	// Split and execute each statement
	statements := strings.Split(query, ";")
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("Security event tables created/verified")
	return nil
}

// InsertEvents persists a batch of events in a single transaction.
func (s *DuckDBStore) InsertEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO security_events (
			id, user_id, session_id, type, severity, description, metadata, timestamp, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range events {
		event := &events[i]
		_, err := stmt.ExecContext(ctx,
			event.ID,
			event.UserID,
			event.SessionID,
			string(event.Type),
			string(event.Severity),
			event.Description,
			metadataParam(event.Metadata),
			event.Timestamp,
			now,
		)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", event.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}

	return nil
}

// metadataParam converts metadata to a nullable string for the JSON column.
func metadataParam(metadata json.RawMessage) *string {
	if len(metadata) == 0 {
		return nil
	}
	s := string(metadata)
	return &s
}

// CountsByType aggregates matching events by type and severity.
func (s *DuckDBStore) CountsByType(ctx context.Context, filter Filter) ([]TypeCount, error) {
	conditions, args := buildFilterConditions(filter)

	query := "SELECT type, severity, COUNT(*) FROM security_events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " GROUP BY type, severity ORDER BY type, severity"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count events by type: %w", err)
	}
	defer rows.Close()

	var results []TypeCount
	for rows.Next() {
		var tc TypeCount
		var eventType, severity string
		if err := rows.Scan(&eventType, &severity, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		tc.Type = EventType(eventType)
		tc.Severity = Severity(severity)
		results = append(results, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type counts: %w", err)
	}

	return results, nil
}

// buildFilterConditions builds WHERE clause conditions from a Filter.
func buildFilterConditions(filter Filter) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}

	if len(filter.Severities) > 0 {
		placeholders := make([]string, len(filter.Severities))
		for i, sev := range filter.Severities {
			placeholders[i] = "?"
			args = append(args, string(sev))
		}
		conditions = append(conditions, fmt.Sprintf("severity IN (%s)", strings.Join(placeholders, ",")))
	}

	if filter.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *filter.StartTime)
	}
	if filter.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *filter.EndTime)
	}

	return conditions, args
}

// RecentEvents returns the most recent events for a user, newest first.
func (s *DuckDBStore) RecentEvents(ctx context.Context, userID string, limit int) ([]Event, error) {
	query := `
		SELECT
			id, user_id, session_id, type, severity, description,
			CAST(metadata AS VARCHAR) as metadata,
			timestamp
		FROM security_events
	`
	var args []interface{}
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY timestamp DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan security event row")
			continue
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent events: %w", err)
	}

	return events, nil
}

// scanEvent scans a row from sql.Rows into an Event.
func scanEvent(rows *sql.Rows) (*Event, error) {
	var event Event
	var eventType, severity string
	var userID, sessionID, metadata sql.NullString

	err := rows.Scan(
		&event.ID,
		&userID,
		&sessionID,
		&eventType,
		&severity,
		&event.Description,
		&metadata,
		&event.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	event.UserID = userID.String
	event.SessionID = sessionID.String
	event.Type = EventType(eventType)
	event.Severity = Severity(severity)
	if metadata.Valid && metadata.String != "" {
		event.Metadata = json.RawMessage(metadata.String)
	}

	return &event, nil
}

// DeleteBefore removes events older than the cutoff.
func (s *DuckDBStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM security_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get deleted count: %w", err)
	}

	if count > 0 {
		logging.Info().Int64("deleted", count).Time("older_than", cutoff).Msg("Deleted old security events")
	}

	return count, nil
}

// UpsertSummary stores the latest per-session aggregate snapshot.
func (s *DuckDBStore) UpsertSummary(ctx context.Context, sessionID string, counts []TypeCount) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO security_summaries (session_id, counts, updated_at)
		VALUES (?, ?, ?)
	`, sessionID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}

	return nil
}

// Summary returns the stored snapshot for a session, if any.
func (s *DuckDBStore) Summary(ctx context.Context, sessionID string) ([]TypeCount, bool) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT CAST(counts AS VARCHAR) FROM security_summaries WHERE session_id = ?`,
		sessionID).Scan(&data)
	if err != nil {
		return nil, false
	}

	var counts []TypeCount
	if err := json.Unmarshal([]byte(data), &counts); err != nil {
		logging.Debug().Err(err).Str("session_id", sessionID).Msg("Failed to parse summary JSON")
		return nil, false
	}

	return counts, true
}

// Close closes the underlying database.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}
