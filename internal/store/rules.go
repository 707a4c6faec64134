package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tvrec/internal/nms"
	"tvrec/internal/services"
)

// AddRecordingRule stores a rule and returns it with its id.
func (s *Store) AddRecordingRule(ctx context.Context, rule nms.RecordingRule) (nms.RecordingRule, error) {
	if strings.TrimSpace(rule.Title) == "" || strings.TrimSpace(rule.Listing) == "" {
		return nms.RecordingRule{}, services.Wrap(services.ErrValidation, "store", "add rule", "title and listing are required", nil)
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO recording_rules (show_id, title, listing, channel) VALUES (?, ?, ?, ?)`,
		nullableString(rule.ShowID), rule.Title, rule.Listing, nullableString(rule.Channel),
	)
	if err != nil {
		return nms.RecordingRule{}, fmt.Errorf("insert rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nms.RecordingRule{}, fmt.Errorf("last insert id: %w", err)
	}
	rule.ID = id
	return rule, nil
}

// DeleteRecordingRule removes rule id.
func (s *Store) DeleteRecordingRule(ctx context.Context, id int64) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM recording_rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

// RecordingRules returns every rule in insertion order.
func (s *Store) RecordingRules(ctx context.Context) ([]nms.RecordingRule, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id, show_id, title, listing, channel FROM recording_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []nms.RecordingRule
	for rows.Next() {
		var (
			rule    nms.RecordingRule
			showID  sql.NullString
			channel sql.NullString
		)
		if err := rows.Scan(&rule.ID, &showID, &rule.Title, &rule.Listing, &channel); err != nil {
			return nil, err
		}
		rule.ShowID = showID.String
		rule.Channel = channel.String
		out = append(out, rule)
	}
	return out, rows.Err()
}

// AddListing configures a listing name. Adding it twice is harmless.
func (s *Store) AddListing(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return services.Wrap(services.ErrValidation, "store", "add listing", "name is required", nil)
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO listings (name, added_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// RemoveListing drops a configured listing name.
func (s *Store) RemoveListing(ctx context.Context, name string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM listings WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

// ConfiguredListingNames returns the configured listing names sorted by name.
func (s *Store) ConfiguredListingNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT name FROM listings ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
