package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RescheduleRequest is a queued request for the scheduler to recompute its plan.
type RescheduleRequest struct {
	ID          int64
	Reason      string
	RequestedAt time.Time
}

// RequestRescheduling queues a request and wakes whoever drains them.
func (s *Store) RequestRescheduling(ctx context.Context, reason string) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO reschedule_requests (reason, requested_at) VALUES (?, ?)`,
		nullableString(reason), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert reschedule request: %w", err)
	}
	select {
	case s.reschedule <- struct{}{}:
	default:
	}
	return nil
}

// RescheduleSignal receives a value whenever new requests were queued.
func (s *Store) RescheduleSignal() <-chan struct{} { return s.reschedule }

// DrainRescheduleRequests removes and returns every queued request in order.
func (s *Store) DrainRescheduleRequests(ctx context.Context) ([]RescheduleRequest, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin drain tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id, reason, requested_at FROM reschedule_requests ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query reschedule requests: %w", err)
	}
	var out []RescheduleRequest
	for rows.Next() {
		var (
			req       RescheduleRequest
			reason    sql.NullString
			requested sql.NullString
		)
		if err := rows.Scan(&req.ID, &reason, &requested); err != nil {
			rows.Close()
			return nil, err
		}
		req.Reason = reason.String
		req.RequestedAt = parseTime(requested)
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(out) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM reschedule_requests WHERE id <= ?`, out[len(out)-1].ID); err != nil {
			return nil, fmt.Errorf("delete reschedule requests: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit drain: %w", err)
	}
	return out, nil
}
