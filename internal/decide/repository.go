package decide

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fitness-coach/internal/llm"
	"fitness-coach/internal/scan"
)

// Repository is a database-backed store for goal decisions. Mutations are a
// locked read-modify-write so two racing commits can never leave a mixed
// value: one of them wins whole.
type Repository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Get retrieves the decision for an owner key. Returns an empty decision
// when none has been recorded yet.
func (r *Repository) Get(ctx context.Context, owner string) (*Decision, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM decisions WHERE owner = ?`, owner).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return &Decision{Owner: owner}, nil
		}
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}

	var dec Decision
	if err := json.Unmarshal([]byte(data), &dec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decision: %w", err)
	}
	return &dec, nil
}

// Save inserts or fully replaces the decision for its owner.
func (r *Repository) Save(ctx context.Context, dec *Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx, dec)
}

func (r *Repository) save(ctx context.Context, dec *Decision) error {
	dec.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(dec)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO decisions (owner, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(owner) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		dec.Owner, string(data), dec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save decision: %w", err)
	}
	return nil
}

// SaveSnapshot freezes Observe-phase output into the owner's decision,
// replacing any prior snapshot but leaving the selected path untouched.
func (r *Repository) SaveSnapshot(ctx context.Context, owner string, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dec, err := r.Get(ctx, owner)
	if err != nil {
		return err
	}
	dec.Snapshot = &snap
	return r.save(ctx, dec)
}

// Commit sets the selected path. Last write wins; re-deciding an already
// committed path is an ordinary commit, not a state change.
func (r *Repository) Commit(ctx context.Context, owner string, path scan.Goal, source Source, rec *llm.PathRecommendation) (*Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dec, err := r.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	dec.SelectedPath = path
	dec.Source = source
	if rec != nil {
		dec.Recommendation = rec
	}
	if err := r.save(ctx, dec); err != nil {
		return nil, err
	}
	return dec, nil
}

// Delete removes the decision for an owner key.
func (r *Repository) Delete(ctx context.Context, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `DELETE FROM decisions WHERE owner = ?`, owner)
	if err != nil {
		return fmt.Errorf("failed to delete decision: %w", err)
	}
	return nil
}
