// Package store persists drafts in SQLite. Drafts are stored as JSON
// documents with an integer version column; updates must present the version
// they read, so two writers cannot silently overwrite each other.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/driftlab/stockflow/internal/patch"
)

var (
	// ErrNotFound reports a draft ID with no stored row.
	ErrNotFound = errors.New("draft not found")
	// ErrVersionConflict reports a stale update: the stored version no longer
	// matches the version the caller read.
	ErrVersionConflict = errors.New("draft version conflict")
)

// StoredDraft pairs a draft with its persistence version.
type StoredDraft struct {
	Draft   *patch.Draft `json:"draft"`
	Version int64        `json:"version"`
}

// DraftStore is a SQLite-backed draft repository.
type DraftStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the store at the given path and runs pending
// migrations. Use ":memory:" for an ephemeral store.
func Open(path string, logger *slog.Logger) (*DraftStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening draft store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening draft store: %w", err)
	}

	s := &DraftStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *DraftStore) Close() error {
	return s.db.Close()
}

// Create persists a new draft at version 1.
func (s *DraftStore) Create(ctx context.Context, d *patch.Draft) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding draft %s: %w", d.DraftID, err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (draft_id, document, version, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
		d.DraftID, string(doc), d.CreatedAt.UTC(), now,
	)
	if err != nil {
		return fmt.Errorf("storing draft %s: %w", d.DraftID, err)
	}

	s.logger.Debug("draft created", slog.String("draft", d.DraftID))
	return nil
}

// Get returns the draft and its current version.
func (s *DraftStore) Get(ctx context.Context, draftID string) (*StoredDraft, error) {
	var (
		doc     string
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT document, version FROM drafts WHERE draft_id = ?`, draftID,
	).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("draft %s: %w", draftID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading draft %s: %w", draftID, err)
	}

	d := &patch.Draft{}
	if err := json.Unmarshal([]byte(doc), d); err != nil {
		return nil, fmt.Errorf("decoding draft %s: %w", draftID, err)
	}
	return &StoredDraft{Draft: d, Version: version}, nil
}

// Update replaces the draft document if the stored version still matches
// expectedVersion, bumping the version by one. A stale expectedVersion yields
// ErrVersionConflict.
func (s *DraftStore) Update(ctx context.Context, d *patch.Draft, expectedVersion int64) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding draft %s: %w", d.DraftID, err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET document = ?, version = version + 1, updated_at = ? WHERE draft_id = ? AND version = ?`,
		string(doc), time.Now().UTC(), d.DraftID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating draft %s: %w", d.DraftID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating draft %s: %w", d.DraftID, err)
	}
	if affected == 0 {
		// Distinguish a missing draft from a stale version.
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM drafts WHERE draft_id = ?`, d.DraftID,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("draft %s: %w", d.DraftID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("updating draft %s: %w", d.DraftID, err)
		}
		return fmt.Errorf("draft %s at version %d: %w", d.DraftID, expectedVersion, ErrVersionConflict)
	}
	return nil
}

// Delete removes the draft. Deleting a missing draft yields ErrNotFound.
func (s *DraftStore) Delete(ctx context.Context, draftID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE draft_id = ?`, draftID)
	if err != nil {
		return fmt.Errorf("deleting draft %s: %w", draftID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting draft %s: %w", draftID, err)
	}
	if affected == 0 {
		return fmt.Errorf("draft %s: %w", draftID, ErrNotFound)
	}
	return nil
}

// List returns every stored draft, newest first.
func (s *DraftStore) List(ctx context.Context) ([]*StoredDraft, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document, version FROM drafts ORDER BY created_at DESC, draft_id`)
	if err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	defer rows.Close()

	var out []*StoredDraft
	for rows.Next() {
		var (
			doc     string
			version int64
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("listing drafts: %w", err)
		}
		d := &patch.Draft{}
		if err := json.Unmarshal([]byte(doc), d); err != nil {
			return nil, fmt.Errorf("decoding stored draft: %w", err)
		}
		out = append(out, &StoredDraft{Draft: d, Version: version})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	return out, nil
}
