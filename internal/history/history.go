// Package history persists finished sessions to SQLite so they can be
// listed and replayed as read-only historical floors.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okatz/crewfloor/internal/floor"
	"github.com/okatz/crewfloor/internal/plan"
)

// ErrNotFound is returned when a session id has no stored record.
var ErrNotFound = errors.New("session not found")

// Store is a SQLite-backed session archive.
type Store struct {
	db *sql.DB
}

// Open creates or opens the archive at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Summary is one row of the session list.
type Summary struct {
	ID         string
	Task       string
	Runtime    string
	Status     floor.SessionStatus
	StartedAt  time.Time
	EndedAt    time.Time
	AgentCount int
	TokensUsed int
	Cost       float64
	Summary    string
}

// SaveSession upserts a session with its full roster and timeline.
// Existing roster and event rows for the session are replaced, so
// re-saving after a continue is safe.
func (s *Store) SaveSession(ctx context.Context, sess *floor.Session, agents []floor.SubAgent, evs []floor.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var planJSON any
	if sess.Plan != nil {
		data, err := json.Marshal(sess.Plan)
		if err != nil {
			return fmt.Errorf("marshal plan: %w", err)
		}
		planJSON = string(data)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO sessions(id, project_id, task, runtime, status, external_session_id, plan, started_at, ended_at, tokens_used, cost_estimate, summary)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status=excluded.status,
	external_session_id=excluded.external_session_id,
	plan=excluded.plan,
	ended_at=excluded.ended_at,
	tokens_used=excluded.tokens_used,
	cost_estimate=excluded.cost_estimate,
	summary=excluded.summary`,
		sess.ID, sess.ProjectID, sess.Task, sess.Runtime, string(sess.Status),
		sess.ExternalSessionID, planJSON, ts(sess.StartedAt), tsOrNil(sess.EndedAt),
		sess.TokensUsed, sess.CostEstimate, sess.Summary)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sub_agents WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("clear sub_agents: %w", err)
	}
	for _, a := range agents {
		_, err := tx.ExecContext(ctx, `
INSERT INTO sub_agents(id, session_id, name, role, status, spawned_at, finished_at, parent_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, sess.ID, a.Name, a.Role, string(a.Status),
			ts(a.SpawnedAt), tsOrNil(a.FinishedAt), nullable(a.ParentID))
		if err != nil {
			return fmt.Errorf("insert sub_agent %s: %w", a.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	for i, ev := range evs {
		_, err := tx.ExecContext(ctx, `
INSERT INTO events(id, session_id, seq, sub_agent_id, sub_agent_name, kind, payload, event_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, sess.ID, i, nullable(ev.SubAgentID), ev.SubAgentName,
			string(ev.Kind), string(ev.Payload), ts(ev.Timestamp))
		if err != nil {
			return fmt.Errorf("insert event %s: %w", ev.ID, err)
		}
	}

	return tx.Commit()
}

// ListSessions returns summaries of stored sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT s.id, s.task, s.runtime, s.status, s.started_at, s.ended_at,
	s.tokens_used, s.cost_estimate, COALESCE(s.summary, ''),
	(SELECT COUNT(*) FROM sub_agents a WHERE a.session_id = s.id)
FROM sessions s
ORDER BY s.started_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var status string
		var started int64
		var ended sql.NullInt64
		if err := rows.Scan(&sum.ID, &sum.Task, &sum.Runtime, &status, &started, &ended,
			&sum.TokensUsed, &sum.Cost, &sum.Summary, &sum.AgentCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.Status = floor.SessionStatus(status)
		sum.StartedAt = fromTS(started)
		if ended.Valid {
			sum.EndedAt = fromTS(ended.Int64)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// LoadSession reads back a full session for historical replay.
func (s *Store) LoadSession(ctx context.Context, id string) (*floor.Session, []floor.SubAgent, []floor.Event, error) {
	var sess floor.Session
	var status string
	var started int64
	var ended sql.NullInt64
	var planJSON, extID, summary sql.NullString

	err := s.db.QueryRowContext(ctx, `
SELECT id, project_id, task, runtime, status, external_session_id, plan, started_at, ended_at, tokens_used, cost_estimate, summary
FROM sessions WHERE id = ?`, id).Scan(
		&sess.ID, &sess.ProjectID, &sess.Task, &sess.Runtime, &status,
		&extID, &planJSON, &started, &ended, &sess.TokensUsed, &sess.CostEstimate, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load session: %w", err)
	}
	sess.Status = floor.SessionStatus(status)
	sess.StartedAt = fromTS(started)
	if ended.Valid {
		sess.EndedAt = fromTS(ended.Int64)
	}
	sess.ExternalSessionID = extID.String
	sess.Summary = summary.String
	if planJSON.Valid && planJSON.String != "" {
		var p plan.TaskPlan
		if err := json.Unmarshal([]byte(planJSON.String), &p); err == nil {
			sess.Plan = &p
		}
	}

	agents, err := s.loadSubAgents(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	events, err := s.loadEvents(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	return &sess, agents, events, nil
}

// DeleteSession removes a session and its roster/timeline rows.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) loadSubAgents(ctx context.Context, sessionID string) ([]floor.SubAgent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, COALESCE(role, ''), status, spawned_at, finished_at, COALESCE(parent_id, '')
FROM sub_agents WHERE session_id = ? ORDER BY spawned_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load sub_agents: %w", err)
	}
	defer rows.Close()

	var out []floor.SubAgent
	for rows.Next() {
		var a floor.SubAgent
		var status string
		var spawned int64
		var finished sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Name, &a.Role, &status, &spawned, &finished, &a.ParentID); err != nil {
			return nil, fmt.Errorf("scan sub_agent: %w", err)
		}
		a.SessionID = sessionID
		a.Status = floor.SubAgentStatus(status)
		a.SpawnedAt = fromTS(spawned)
		if finished.Valid {
			a.FinishedAt = fromTS(finished.Int64)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) loadEvents(ctx context.Context, sessionID string) ([]floor.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, COALESCE(sub_agent_id, ''), sub_agent_name, kind, payload, event_time
FROM events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var out []floor.Event
	for rows.Next() {
		var ev floor.Event
		var kind, payload string
		var at int64
		if err := rows.Scan(&ev.ID, &ev.SubAgentID, &ev.SubAgentName, &kind, &payload, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = floor.EventKind(kind)
		if payload != "" {
			ev.Payload = json.RawMessage(payload)
		}
		ev.Timestamp = fromTS(at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func ts(t time.Time) int64 {
	return t.UnixMilli()
}

func tsOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func fromTS(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
