package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SaveSnapshot persists a session state blob. Written through on every
// session save so a restarted server can pick sessions back up; losing one
// only costs in-progress client state.
func (s *Store) SaveSnapshot(ctx context.Context, sessionID string, state []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_snapshots (session_id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			state = excluded.state, updated_at = excluded.updated_at`,
		sessionID, string(state), time.Now().Unix())
	return err
}

// LoadSnapshot returns nil with no error when no snapshot exists.
func (s *Store) LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error) {
	var state string
	err := s.db.QueryRowContext(ctx, `
		SELECT state FROM session_snapshots WHERE session_id = ?`, sessionID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(state), nil
}

func (s *Store) DeleteSnapshot(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE session_id = ?`, sessionID)
	return err
}

// PurgeSnapshotsBefore drops snapshots untouched since the cutoff, mirroring
// the in-memory session TTL.
func (s *Store) PurgeSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
