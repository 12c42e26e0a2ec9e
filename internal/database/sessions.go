package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord is one row of the sessions table
type SessionRecord struct {
	ID           string
	StartedAt    time.Time
	EndedAt      time.Time
	RegionX      int
	RegionY      int
	RegionWidth  int
	RegionHeight int
	GridColumns  int
	SampleCount  int
	ActionCount  int
}

// SampleRecord is one row of the samples table
type SampleRecord struct {
	Seq         int
	Grid        string
	Action      int
	PlayerFound bool
	GameOver    bool
	ShopPrompt  bool
	CapturedAt  time.Time
}

// SaveSession writes a session and all of its samples in a single transaction.
// Nothing is stored when ctx ends before the commit.
func (db *DB) SaveSession(ctx context.Context, session *SessionRecord, samples []SampleRecord) error {
	return db.ExecTxContext(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (
				id, started_at, ended_at,
				region_x, region_y, region_width, region_height,
				grid_columns, sample_count, action_count
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, session.ID, session.StartedAt, session.EndedAt,
			session.RegionX, session.RegionY, session.RegionWidth, session.RegionHeight,
			session.GridColumns, session.SampleCount, session.ActionCount)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}

		if len(samples) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO samples (
				session_id, seq, grid, action,
				player_found, game_over, shop_prompt, captured_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare sample insert: %w", err)
		}
		defer stmt.Close()

		for _, s := range samples {
			if _, err := stmt.ExecContext(ctx, session.ID, s.Seq, s.Grid, s.Action,
				s.PlayerFound, s.GameOver, s.ShopPrompt, s.CapturedAt); err != nil {
				return fmt.Errorf("failed to insert sample %d: %w", s.Seq, err)
			}
		}
		return nil
	})
}

// GetSession returns a session by ID
func (db *DB) GetSession(id string) (*SessionRecord, error) {
	s := &SessionRecord{}
	err := db.conn.QueryRow(`
		SELECT id, started_at, ended_at,
			region_x, region_y, region_width, region_height,
			grid_columns, sample_count, action_count
		FROM sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.StartedAt, &s.EndedAt,
		&s.RegionX, &s.RegionY, &s.RegionWidth, &s.RegionHeight,
		&s.GridColumns, &s.SampleCount, &s.ActionCount)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// ListSessionIDs returns session IDs, newest first
func (db *DB) ListSessionIDs() ([]string, error) {
	rows, err := db.conn.Query(`SELECT id FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListSamples returns a session's samples in capture order
func (db *DB) ListSamples(sessionID string) ([]SampleRecord, error) {
	rows, err := db.conn.Query(`
		SELECT seq, grid, action, player_found, game_over, shop_prompt, captured_at
		FROM samples
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer rows.Close()

	var samples []SampleRecord
	for rows.Next() {
		var s SampleRecord
		if err := rows.Scan(&s.Seq, &s.Grid, &s.Action,
			&s.PlayerFound, &s.GameOver, &s.ShopPrompt, &s.CapturedAt); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
