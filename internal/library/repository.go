package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"fitness-coach/internal/scan"
)

// Repository is a database-backed repository for the workout library.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Save inserts or updates a workout.
func (r *Repository) Save(ctx context.Context, w Workout) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to marshal workout: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO workouts (id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		w.ID, string(data), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save workout %s: %w", w.ID, err)
	}
	return nil
}

// Get retrieves a workout by id. Returns nil when not found.
func (r *Repository) Get(ctx context.Context, id string) (*Workout, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM workouts WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get workout %s: %w", id, err)
	}

	var w Workout
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workout %s: %w", id, err)
	}
	return &w, nil
}

// List retrieves every workout, ordered by id for stable iteration.
func (r *Repository) List(ctx context.Context) ([]Workout, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, data FROM workouts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workouts: %w", err)
	}
	defer rows.Close()

	var workouts []Workout
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan workout row: %w", err)
		}
		var w Workout
		if err := json.Unmarshal([]byte(data), &w); err != nil {
			log.Printf("Warning: failed to unmarshal workout %s: %v", id, err)
			continue
		}
		workouts = append(workouts, w)
	}
	return workouts, rows.Err()
}

// ListForGoal retrieves the workouts whose focus tags suit a goal.
func (r *Repository) ListForGoal(ctx context.Context, goal scan.Goal) ([]Workout, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var matched []Workout
	for _, w := range all {
		if w.SuitsGoal(goal) {
			matched = append(matched, w)
		}
	}
	return matched, nil
}

// Count returns the number of workouts in the library.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workouts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count workouts: %w", err)
	}
	return count, nil
}

// SeedIfEmpty loads the curated starter set when the library has no entries.
func (r *Repository) SeedIfEmpty(ctx context.Context) error {
	count, err := r.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, w := range SeedWorkouts() {
		if err := r.Save(ctx, w); err != nil {
			return err
		}
	}
	log.Printf("Seeded workout library with %d entries", len(SeedWorkouts()))
	return nil
}
