package plan

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Repository is a database-backed store for weekly plans, one per owner.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Save inserts or fully replaces the owner's weekly plan.
func (r *Repository) Save(ctx context.Context, p *WeeklyPlan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal weekly plan: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO weekly_plans (owner, goal, data, generated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner) DO UPDATE SET goal = excluded.goal, data = excluded.data, generated_at = excluded.generated_at`,
		p.Owner, string(p.Goal), string(data), p.GeneratedAt)
	if err != nil {
		return fmt.Errorf("failed to save weekly plan: %w", err)
	}
	return nil
}

// Get retrieves the owner's weekly plan. Returns nil when none exists.
func (r *Repository) Get(ctx context.Context, owner string) (*WeeklyPlan, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM weekly_plans WHERE owner = ?`, owner).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get weekly plan: %w", err)
	}

	var p WeeklyPlan
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weekly plan: %w", err)
	}
	return &p, nil
}

// Delete removes the owner's weekly plan.
func (r *Repository) Delete(ctx context.Context, owner string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM weekly_plans WHERE owner = ?`, owner)
	if err != nil {
		return fmt.Errorf("failed to delete weekly plan: %w", err)
	}
	return nil
}
