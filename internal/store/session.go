package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"docchat/internal/model"
)

// ErrSessionNotFound is returned when clearing a session that was never
// created.
var ErrSessionNotFound = errors.New("session not found")

// AppendTurn records a completed turn, creating the session row on first
// use.
func (s *SQLiteStore) AppendTurn(ctx context.Context, sessionID string, t model.Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`,
		sessionID, now.Format(time.RFC3339))
	if err != nil {
		return err
	}

	id := t.ID
	if id == "" {
		id = s.NewID()
	}
	ts := t.Timestamp
	if ts.IsZero() {
		ts = now
	}

	var cited, sources *string
	if len(t.CitedChunkIDs) > 0 {
		b, _ := json.Marshal(t.CitedChunkIDs)
		v := string(b)
		cited = &v
	}
	if len(t.Sources) > 0 {
		b, _ := json.Marshal(t.Sources)
		v := string(b)
		sources = &v
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, query, intent, answer, cited_chunk_ids, sources, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, sessionID, t.Query, string(t.Intent), t.Answer, cited, sources,
		ts.Format(time.RFC3339Nano))
	if err != nil {
		return err
	}

	return tx.Commit()
}

// RecentTurns returns the most recent n turns of a session, oldest first.
// An unknown session yields an empty result, not an error.
func (s *SQLiteStore) RecentTurns(ctx context.Context, sessionID string, n int) ([]model.Turn, error) {
	if n <= 0 {
		n = 6
	}

	// Appends within a session are serialized, so insertion order (rowid)
	// is the turn order. Sorting the RFC3339Nano text would misorder
	// whole-second timestamps against fractional ones.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, intent, answer, cited_chunk_ids, sources, created_at
		 FROM turns WHERE session_id = ?
		 ORDER BY rowid DESC LIMIT ?`, sessionID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order, newest last
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ClearSession removes a session and its turns.
func (s *SQLiteStore) ClearSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return tx.Commit()
}

func scanTurn(rows *sql.Rows) (model.Turn, error) {
	var t model.Turn
	var intent, createdAt string
	var cited, sources sql.NullString

	if err := rows.Scan(&t.ID, &t.Query, &intent, &t.Answer, &cited, &sources, &createdAt); err != nil {
		return t, err
	}
	t.Intent = model.Intent(intent)
	t.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
	if cited.Valid {
		json.Unmarshal([]byte(cited.String), &t.CitedChunkIDs)
	}
	if sources.Valid {
		json.Unmarshal([]byte(sources.String), &t.Sources)
	}
	return t, nil
}
