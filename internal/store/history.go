package store

import (
	"context"
	"fmt"
	"time"
)

// AddRecordedHistory marks showID as recorded so the scheduler skips it.
func (s *Store) AddRecordedHistory(ctx context.Context, showID string) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO recorded_history (show_id, recorded_at) VALUES (?, ?)
         ON CONFLICT(show_id) DO UPDATE SET recorded_at = excluded.recorded_at`,
		showID, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("add recorded history: %w", err)
	}
	return nil
}

// RemoveRecordedHistory forgets showID so it may be recorded again.
func (s *Store) RemoveRecordedHistory(ctx context.Context, showID string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM recorded_history WHERE show_id = ?`, showID); err != nil {
		return fmt.Errorf("remove recorded history: %w", err)
	}
	return nil
}

// RecordedHistory reports whether showID is in the recorded history.
func (s *Store) RecordedHistory(ctx context.Context, showID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM recorded_history WHERE show_id = ?`, showID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query recorded history: %w", err)
	}
	return count > 0, nil
}
