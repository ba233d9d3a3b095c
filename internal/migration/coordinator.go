package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fitness-coach/internal/auth"
	"fitness-coach/internal/decide"
	"fitness-coach/internal/plan"
	"fitness-coach/internal/scan"
)

// ErrAlreadyMigrated is returned when a session id has already been moved
// into an authenticated identity.
var ErrAlreadyMigrated = errors.New("session already migrated")

// Coordinator moves an anonymous session's accumulated state into an
// authenticated identity exactly once. The move runs in a single database
// transaction under a per-session lock, so a caller abandoning the request
// can never leave a half-moved record behind.
type Coordinator struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(db *sql.DB) *Coordinator {
	return &Coordinator{db: db, locks: make(map[string]*sync.Mutex)}
}

// sessionLock returns the mutex guarding one session id, creating it on
// first use. At most one migration runs per session id at a time.
func (c *Coordinator) sessionLock(sessionID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[sessionID] = l
	}
	return l
}

// Migrate re-keys the scan record, goal decision, and weekly plan stored
// under the anonymous session to the authenticated identity. Merging is
// first-write-wins per field: anonymous data only fills fields the
// authenticated identity has not populated, and an existing authenticated
// weekly plan discards the anonymous one outright. The anonymous rows are
// deleted and the session id becomes a read alias for the new owner.
func (c *Coordinator) Migrate(ctx context.Context, sessionID string, user auth.Identity) error {
	if !user.IsUser() {
		return fmt.Errorf("%w: migration requires an authenticated identity", auth.ErrUnauthorized)
	}

	lock := c.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	anonOwner := auth.Anonymous(sessionID).Key()
	userOwner := user.Key()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	anonScan, err := loadJSON[scan.Record](ctx, tx, `SELECT data FROM scans WHERE owner = ?`, anonOwner)
	if err != nil {
		return err
	}
	if anonScan == nil {
		// Distinguish "never existed" from "already moved".
		var alias string
		err := tx.QueryRowContext(ctx, `SELECT owner FROM scan_aliases WHERE session_id = ?`, sessionID).Scan(&alias)
		if err == nil {
			return ErrAlreadyMigrated
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check session alias: %w", err)
		}
		return scan.ErrSessionNotFound
	}

	if err := c.mergeScan(ctx, tx, anonScan, sessionID, userOwner); err != nil {
		return err
	}
	if err := c.mergeDecision(ctx, tx, anonOwner, userOwner); err != nil {
		return err
	}
	if err := c.mergePlan(ctx, tx, anonOwner, userOwner); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, stmt := range []struct {
		query string
		args  []interface{}
	}{
		{`DELETE FROM scans WHERE owner = ?`, []interface{}{anonOwner}},
		{`DELETE FROM decisions WHERE owner = ?`, []interface{}{anonOwner}},
		{`DELETE FROM weekly_plans WHERE owner = ?`, []interface{}{anonOwner}},
		{`INSERT INTO scan_aliases (session_id, owner, migrated_at) VALUES (?, ?, ?)`, []interface{}{sessionID, userOwner, now}},
	} {
		if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			return fmt.Errorf("migration write failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	log.Printf("Migrated session %s to %s", sessionID, userOwner)
	return nil
}

func (c *Coordinator) mergeScan(ctx context.Context, tx *sql.Tx, anon *scan.Record, sessionID, userOwner string) error {
	existing, err := loadJSON[scan.Record](ctx, tx, `SELECT data FROM scans WHERE owner = ?`, userOwner)
	if err != nil {
		return err
	}

	merged := anon
	if existing != nil {
		merged = existing
		if merged.PhotoRef == "" {
			merged.PhotoRef = anon.PhotoRef
		}
		if merged.Analysis == nil {
			merged.Analysis = anon.Analysis
		}
		if len(merged.GeneratedImages) == 0 {
			merged.GeneratedImages = anon.GeneratedImages
		}
	}
	merged.Owner = userOwner
	merged.SessionID = sessionID
	merged.ExpiresAt = time.Time{} // authenticated records do not expire

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("migration marshal failed: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO scans (owner, data, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(owner) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		userOwner, string(data), merged.CreatedAt)
	if err != nil {
		return fmt.Errorf("migration write failed: %w", err)
	}
	return nil
}

func (c *Coordinator) mergeDecision(ctx context.Context, tx *sql.Tx, anonOwner, userOwner string) error {
	anon, err := loadJSON[decide.Decision](ctx, tx, `SELECT data FROM decisions WHERE owner = ?`, anonOwner)
	if err != nil || anon == nil {
		return err
	}
	existing, err := loadJSON[decide.Decision](ctx, tx, `SELECT data FROM decisions WHERE owner = ?`, userOwner)
	if err != nil {
		return err
	}

	merged := anon
	if existing != nil {
		merged = existing
		if merged.Snapshot == nil {
			merged.Snapshot = anon.Snapshot
		}
		if merged.SelectedPath == "" {
			merged.SelectedPath = anon.SelectedPath
			merged.Source = anon.Source
		}
		if merged.Recommendation == nil {
			merged.Recommendation = anon.Recommendation
		}
	}
	merged.Owner = userOwner

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("migration marshal failed: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO decisions (owner, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(owner) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userOwner, string(data), merged.UpdatedAt)
	if err != nil {
		return fmt.Errorf("migration write failed: %w", err)
	}
	return nil
}

func (c *Coordinator) mergePlan(ctx context.Context, tx *sql.Tx, anonOwner, userOwner string) error {
	anon, err := loadJSON[plan.WeeklyPlan](ctx, tx, `SELECT data FROM weekly_plans WHERE owner = ?`, anonOwner)
	if err != nil || anon == nil {
		return err
	}
	existing, err := loadJSON[plan.WeeklyPlan](ctx, tx, `SELECT data FROM weekly_plans WHERE owner = ?`, userOwner)
	if err != nil {
		return err
	}
	if existing != nil {
		// The authenticated plan wins whole; anonymous plans are never
		// merged day-by-day.
		return nil
	}

	anon.Owner = userOwner
	data, err := json.Marshal(anon)
	if err != nil {
		return fmt.Errorf("migration marshal failed: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO weekly_plans (owner, goal, data, generated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner) DO UPDATE SET goal = excluded.goal, data = excluded.data, generated_at = excluded.generated_at`,
		userOwner, string(anon.Goal), string(data), anon.GeneratedAt)
	if err != nil {
		return fmt.Errorf("migration write failed: %w", err)
	}
	return nil
}

func loadJSON[T any](ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (*T, error) {
	var data string
	err := tx.QueryRowContext(ctx, query, args...).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("migration read failed: %w", err)
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("migration unmarshal failed: %w", err)
	}
	return &v, nil
}
