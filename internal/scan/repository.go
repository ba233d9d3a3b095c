package scan

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Repository is a database-backed store for scan records. One row per owner
// key; mutations take the repository lock so concurrent per-goal writers
// never interleave partial field updates.
type Repository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Save inserts or fully replaces the scan record for its owner.
func (r *Repository) Save(ctx context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx, rec)
}

func (r *Repository) save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal scan record: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO scans (owner, data, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(owner) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		rec.Owner, string(data), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save scan record: %w", err)
	}
	return nil
}

// Get retrieves the scan record for an owner key.
func (r *Repository) Get(ctx context.Context, owner string) (*Record, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM scans WHERE owner = ?`, owner).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get scan record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan record: %w", err)
	}
	return &rec, nil
}

// UpdateAnalysis replaces the analysis on an owner's record.
func (r *Repository) UpdateAnalysis(ctx context.Context, owner string, analysis Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.Get(ctx, owner)
	if err != nil {
		return err
	}
	rec.Analysis = &analysis
	return r.save(ctx, rec)
}

// UpsertImage inserts or replaces the generated image for its goal on an
// owner's record. Safe to call concurrently for different goals.
func (r *Repository) UpsertImage(ctx context.Context, owner string, img GeneratedImage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.Get(ctx, owner)
	if err != nil {
		return err
	}
	rec.SetImage(img)
	return r.save(ctx, rec)
}

// Delete removes the scan record for an owner key.
func (r *Repository) Delete(ctx context.Context, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `DELETE FROM scans WHERE owner = ?`, owner)
	if err != nil {
		return fmt.Errorf("failed to delete scan record: %w", err)
	}
	return nil
}

// ResolveAlias returns the owner key a migrated session id now points to.
// Returns ErrSessionNotFound when the session was never migrated.
func (r *Repository) ResolveAlias(ctx context.Context, sessionID string) (string, error) {
	var owner string
	err := r.db.QueryRowContext(ctx,
		`SELECT owner FROM scan_aliases WHERE session_id = ?`, sessionID).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to resolve session alias: %w", err)
	}
	return owner, nil
}

// SaveAlias records that a session id now belongs to an authenticated owner.
func (r *Repository) SaveAlias(ctx context.Context, sessionID, owner string, migratedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scan_aliases (session_id, owner, migrated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET owner = excluded.owner, migrated_at = excluded.migrated_at`,
		sessionID, owner, migratedAt)
	if err != nil {
		return fmt.Errorf("failed to save session alias: %w", err)
	}
	return nil
}
