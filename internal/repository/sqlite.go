package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS previews (
			preview_id TEXT PRIMARY KEY,
			content_base_uuid TEXT,
			flow_uuid TEXT NOT NULL,
			flow_name TEXT,
			contact TEXT,
			state TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS preview_events (
			event_id TEXT PRIMARY KEY,
			preview_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (preview_id) REFERENCES previews(preview_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_preview_events_seq ON preview_events(preview_id, seq)`,
		`CREATE TABLE IF NOT EXISTS trace_logs (
			log_id TEXT PRIMARY KEY,
			preview_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			kind TEXT,
			summary TEXT NOT NULL,
			category TEXT NOT NULL,
			icon TEXT NOT NULL,
			agent_name TEXT,
			raw TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trace_logs_preview ON trace_logs(preview_id, ts)`,
		`CREATE TABLE IF NOT EXISTS trace_anomalies (
			anomaly_id TEXT PRIMARY KEY,
			message TEXT NOT NULL,
			trace TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreatePreview creates a new preview.
func (s *SQLiteStore) CreatePreview(ctx context.Context, preview *domain.Preview) error {
	now := time.Now()
	if preview.CreatedAt.IsZero() {
		preview.CreatedAt = now
	}
	if preview.UpdatedAt.IsZero() {
		preview.UpdatedAt = preview.CreatedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO previews (preview_id, content_base_uuid, flow_uuid, flow_name, contact, state, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		preview.PreviewID, nullString(preview.ContentBaseUUID), preview.FlowUUID, nullString(preview.FlowName),
		nullStringBytes(preview.Contact), nullStringBytes(preview.State), preview.CreatedAt, preview.UpdatedAt)
	return err
}

// GetPreview retrieves a preview by ID.
func (s *SQLiteStore) GetPreview(ctx context.Context, previewID string) (*domain.Preview, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT preview_id, content_base_uuid, flow_uuid, flow_name, contact, state, created_at, updated_at FROM previews WHERE preview_id = ?`,
		previewID)
	preview, err := scanPreview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return preview, nil
}

// UpdatePreviewState stores the latest settled state of a preview.
func (s *SQLiteStore) UpdatePreviewState(ctx context.Context, previewID string, state []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE previews SET state = ?, updated_at = ? WHERE preview_id = ?`,
		nullStringBytes(state), time.Now(), previewID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("preview %s not found", previewID)
	}
	return nil
}

// ListPreviews lists the most recently updated previews.
func (s *SQLiteStore) ListPreviews(ctx context.Context, limit int) ([]domain.Preview, error) {
	query := `SELECT preview_id, content_base_uuid, flow_uuid, flow_name, contact, state, created_at, updated_at FROM previews ORDER BY updated_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var previews []domain.Preview
	for rows.Next() {
		preview, err := scanPreview(rows)
		if err != nil {
			return nil, err
		}
		previews = append(previews, *preview)
	}
	return previews, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPreview(row scanner) (*domain.Preview, error) {
	var preview domain.Preview
	var contentBase, flowName, contact, state sql.NullString
	if err := row.Scan(&preview.PreviewID, &contentBase, &preview.FlowUUID, &flowName, &contact, &state, &preview.CreatedAt, &preview.UpdatedAt); err != nil {
		return nil, err
	}
	preview.ContentBaseUUID = contentBase.String
	preview.FlowName = flowName.String
	if contact.Valid {
		preview.Contact = []byte(contact.String)
	}
	if state.Valid {
		preview.State = []byte(state.String)
	}
	return &preview, nil
}

// AppendPreviewEvent stores an event released to a preview timeline.
func (s *SQLiteStore) AppendPreviewEvent(ctx context.Context, event *domain.TimelineEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preview_events (event_id, preview_id, seq, ts, type, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		event.EventID, event.PreviewID, event.Seq, event.Ts, event.Type, nullStringBytes(event.Payload))
	return err
}

// GetPreviewEvents retrieves timeline events after a sequence number.
func (s *SQLiteStore) GetPreviewEvents(ctx context.Context, previewID string, afterSeq int, limit int) ([]domain.TimelineEvent, error) {
	query := `SELECT event_id, preview_id, seq, ts, type, payload FROM preview_events WHERE preview_id = ? AND seq > ? ORDER BY seq ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, previewID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.TimelineEvent
	for rows.Next() {
		var event domain.TimelineEvent
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.PreviewID, &event.Seq, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			event.Payload = []byte(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CreateTraceLog stores a classified trace.
func (s *SQLiteStore) CreateTraceLog(ctx context.Context, log *domain.TraceLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trace_logs (log_id, preview_id, ts, kind, summary, category, icon, agent_name, raw) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.LogID, log.PreviewID, log.Ts, nullString(log.Kind), log.Summary, log.Category, log.Icon,
		nullString(log.AgentName), nullStringBytes(log.Raw))
	return err
}

// GetTraceLogs retrieves classified traces of a preview.
func (s *SQLiteStore) GetTraceLogs(ctx context.Context, previewID string, afterTs int64, limit int) ([]domain.TraceLog, error) {
	query := `SELECT log_id, preview_id, ts, kind, summary, category, icon, agent_name, raw FROM trace_logs WHERE preview_id = ? AND ts > ? ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, previewID, afterTs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.TraceLog
	for rows.Next() {
		var entry domain.TraceLog
		var kind, agentName, raw sql.NullString
		if err := rows.Scan(&entry.LogID, &entry.PreviewID, &entry.Ts, &kind, &entry.Summary, &entry.Category, &entry.Icon, &agentName, &raw); err != nil {
			return nil, err
		}
		entry.Kind = kind.String
		entry.AgentName = agentName.String
		if raw.Valid {
			entry.Raw = []byte(raw.String)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// CreateTraceAnomaly stores a trace no classification rule matched.
func (s *SQLiteStore) CreateTraceAnomaly(ctx context.Context, anomaly *domain.TraceAnomaly) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trace_anomalies (anomaly_id, message, trace, created_at) VALUES (?, ?, ?, ?)`,
		anomaly.AnomalyID, anomaly.Message, nullString(anomaly.Trace), anomaly.CreatedAt)
	return err
}

// ListTraceAnomalies lists the most recent anomalies.
func (s *SQLiteStore) ListTraceAnomalies(ctx context.Context, limit int) ([]domain.TraceAnomaly, error) {
	query := `SELECT anomaly_id, message, trace, created_at FROM trace_anomalies ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anomalies []domain.TraceAnomaly
	for rows.Next() {
		var anomaly domain.TraceAnomaly
		var trace sql.NullString
		if err := rows.Scan(&anomaly.AnomalyID, &anomaly.Message, &trace, &anomaly.CreatedAt); err != nil {
			return nil, err
		}
		anomaly.Trace = trace.String
		anomalies = append(anomalies, anomaly)
	}
	return anomalies, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
