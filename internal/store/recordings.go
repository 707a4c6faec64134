package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tvrec/internal/device"
	"tvrec/internal/nms"
	"tvrec/internal/services"
)

var _ nms.Scheduler = (*Store)(nil)

const recordingColumns = "id, show_id, title, device, channel_number, channel_name, channel_frequency, channel_reference, start_time, duration_seconds, destination_file, status, created_at, updated_at"

func scanRecording(scanner interface{ Scan(dest ...any) error }) (nms.Recording, error) {
	var (
		rec        nms.Recording
		showID     sql.NullString
		dev        sql.NullString
		number     sql.NullString
		name       sql.NullString
		reference  sql.NullString
		startRaw   sql.NullString
		dest       sql.NullString
		statusStr  string
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&showID,
		&rec.Title,
		&dev,
		&number,
		&name,
		&rec.Channel.Frequency,
		&reference,
		&startRaw,
		&rec.DurationSeconds,
		&dest,
		&statusStr,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nms.Recording{}, err
	}
	rec.ShowID = showID.String
	rec.Device = dev.String
	rec.Channel = device.Channel{
		Number:          number.String,
		Name:            name.String,
		Frequency:       rec.Channel.Frequency,
		ReferenceNumber: reference.String,
	}
	rec.StartTime = parseTime(startRaw)
	rec.DestinationFile = dest.String
	rec.Status = nms.Status(statusStr)
	rec.CreatedAt = parseTime(createdRaw)
	rec.UpdatedAt = parseTime(updatedRaw)
	return rec, nil
}

// AddRecording inserts rec, assigning an id and timestamps when missing.
func (s *Store) AddRecording(ctx context.Context, rec nms.Recording) (nms.Recording, error) {
	if strings.TrimSpace(rec.Title) == "" {
		return nms.Recording{}, services.Wrap(services.ErrValidation, "store", "add recording", "title is required", nil)
	}
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = nms.StatusScheduled
	}
	if rec.StartTime.IsZero() {
		rec.StartTime = now
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.execWithRetry(ctx,
		`INSERT INTO recordings (`+recordingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		nullableString(rec.ShowID),
		rec.Title,
		nullableString(rec.Device),
		nullableString(rec.Channel.Number),
		nullableString(rec.Channel.Name),
		rec.Channel.Frequency,
		nullableString(rec.Channel.ReferenceNumber),
		formatTime(rec.StartTime),
		rec.DurationSeconds,
		nullableString(rec.DestinationFile),
		string(rec.Status),
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return nms.Recording{}, fmt.Errorf("insert recording: %w", err)
	}
	return rec, nil
}

// Recording fetches a recording by id.
func (s *Store) Recording(ctx context.Context, id string) (nms.Recording, bool, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nms.Recording{}, false, nil
	}
	if err != nil {
		return nms.Recording{}, false, fmt.Errorf("get recording: %w", err)
	}
	return rec, true, nil
}

// Recordings returns every recording ordered by start time.
func (s *Store) Recordings(ctx context.Context) ([]nms.Recording, error) {
	return s.queryRecordings(ctx, `SELECT `+recordingColumns+` FROM recordings ORDER BY start_time, id`)
}

// RecordingsByStatus returns recordings with any of statuses.
func (s *Store) RecordingsByStatus(ctx context.Context, statuses ...nms.Status) ([]nms.Recording, error) {
	if len(statuses) == 0 {
		return s.Recordings(ctx)
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = string(status)
	}
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE status IN (` + strings.Join(placeholders, ",") + `) ORDER BY start_time, id`
	return s.queryRecordings(ctx, query, args...)
}

func (s *Store) queryRecordings(ctx context.Context, query string, args ...any) ([]nms.Recording, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var out []nms.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateRecordingStatus changes the status of recording id.
func (s *Store) UpdateRecordingStatus(ctx context.Context, id string, status nms.Status) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE recordings SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update recording status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update recording status", id, nil)
	}
	return nil
}

// DeleteRecording removes recording id. Deleting an unknown id is not an error.
func (s *Store) DeleteRecording(ctx context.Context, id string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM recordings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	return nil
}
