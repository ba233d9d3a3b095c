package migration

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fitness-coach/internal/auth"
	"fitness-coach/internal/database"
	"fitness-coach/internal/decide"
	"fitness-coach/internal/plan"
	"fitness-coach/internal/scan"
)

type testStores struct {
	coordinator *Coordinator
	scans       *scan.Repository
	decisions   *decide.Repository
	plans       *plan.Repository
}

func newTestStores(t *testing.T) testStores {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return testStores{
		coordinator: NewCoordinator(db.SQL),
		scans:       scan.NewRepository(db.SQL),
		decisions:   decide.NewRepository(db.SQL),
		plans:       plan.NewRepository(db.SQL),
	}
}

func seedAnonSession(t *testing.T, s testStores, sessionID string) {
	t.Helper()
	ctx := context.Background()
	rec := &scan.Record{
		Owner:     auth.Anonymous(sessionID).Key(),
		SessionID: sessionID,
		PhotoRef:  "anonymous/" + sessionID + "/photo.jpg",
		Analysis:  &scan.Analysis{Category: "average"},
		GeneratedImages: []scan.GeneratedImage{
			{Goal: scan.GoalLean, Ref: "anonymous/" + sessionID + "/generated/lean.jpg"},
		},
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().AddDate(0, 0, 30),
	}
	if err := s.scans.Save(ctx, rec); err != nil {
		t.Fatalf("failed to seed anon scan: %v", err)
	}
}

func TestMigrateMovesScanRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t)
	seedAnonSession(t, s, "abc123")
	user := auth.User("42")

	if err := s.coordinator.Migrate(ctx, "abc123", user); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	// Anonymous row is gone, authenticated row carries the data.
	if _, err := s.scans.Get(ctx, auth.Anonymous("abc123").Key()); !errors.Is(err, scan.ErrSessionNotFound) {
		t.Errorf("expected anon record deleted, got %v", err)
	}
	got, err := s.scans.Get(ctx, user.Key())
	if err != nil {
		t.Fatalf("Get migrated record failed: %v", err)
	}
	if got.Analysis == nil || got.Analysis.Category != "average" {
		t.Errorf("migrated record lost analysis: %+v", got.Analysis)
	}
	if !got.ExpiresAt.IsZero() {
		t.Error("authenticated records must not carry an expiry")
	}

	// The session id stays resolvable as a read alias.
	owner, err := s.scans.ResolveAlias(ctx, "abc123")
	if err != nil {
		t.Fatalf("ResolveAlias failed: %v", err)
	}
	if owner != user.Key() {
		t.Errorf("expected alias to %s, got %s", user.Key(), owner)
	}
}

func TestMigrateTwiceReturnsAlreadyMigrated(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t)
	seedAnonSession(t, s, "abc123")
	user := auth.User("42")

	if err := s.coordinator.Migrate(ctx, "abc123", user); err != nil {
		t.Fatalf("first Migrate failed: %v", err)
	}
	if err := s.coordinator.Migrate(ctx, "abc123", user); !errors.Is(err, ErrAlreadyMigrated) {
		t.Errorf("expected ErrAlreadyMigrated, got %v", err)
	}
	// Same for a different user trying the consumed session.
	if err := s.coordinator.Migrate(ctx, "abc123", auth.User("99")); !errors.Is(err, ErrAlreadyMigrated) {
		t.Errorf("expected ErrAlreadyMigrated for second user, got %v", err)
	}
}

func TestMigrateUnknownSession(t *testing.T) {
	s := newTestStores(t)

	err := s.coordinator.Migrate(context.Background(), "never-existed", auth.User("42"))
	if !errors.Is(err, scan.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMigrateRequiresAuthenticatedIdentity(t *testing.T) {
	s := newTestStores(t)
	seedAnonSession(t, s, "abc123")

	err := s.coordinator.Migrate(context.Background(), "abc123", auth.Anonymous("abc123"))
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestMigrateFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t)
	seedAnonSession(t, s, "abc123")
	user := auth.User("42")

	// The user already analyzed a photo of their own.
	existing := &scan.Record{
		Owner:     user.Key(),
		PhotoRef:  "users/42/observe/own.jpg",
		Analysis:  &scan.Analysis{Category: "athletic"},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.scans.Save(ctx, existing); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.coordinator.Migrate(ctx, "abc123", user); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	got, err := s.scans.Get(ctx, user.Key())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.PhotoRef != "users/42/observe/own.jpg" {
		t.Errorf("existing photo should win, got %q", got.PhotoRef)
	}
	if got.Analysis.Category != "athletic" {
		t.Errorf("existing analysis should win, got %q", got.Analysis.Category)
	}
	// Empty fields are filled from the anonymous record.
	if len(got.GeneratedImages) != 1 {
		t.Errorf("expected anon generated images to fill the gap, got %d", len(got.GeneratedImages))
	}
}

func TestMigrateCarriesDecisionAndPlan(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t)
	seedAnonSession(t, s, "abc123")
	user := auth.User("42")
	anonOwner := auth.Anonymous("abc123").Key()

	if _, err := s.decisions.Commit(ctx, anonOwner, scan.GoalLean, decide.SourceUserSelected, nil); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	anonPlan := &plan.WeeklyPlan{Owner: anonOwner, Goal: scan.GoalLean, GeneratedAt: time.Now().UTC()}
	if err := s.plans.Save(ctx, anonPlan); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.coordinator.Migrate(ctx, "abc123", user); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	dec, err := s.decisions.Get(ctx, user.Key())
	if err != nil {
		t.Fatalf("Get decision failed: %v", err)
	}
	if dec.SelectedPath != scan.GoalLean {
		t.Errorf("expected migrated selected path lean, got %q", dec.SelectedPath)
	}

	p, err := s.plans.Get(ctx, user.Key())
	if err != nil {
		t.Fatalf("Get plan failed: %v", err)
	}
	if p == nil || p.Goal != scan.GoalLean {
		t.Errorf("expected migrated plan for lean, got %+v", p)
	}
	if gone, _ := s.plans.Get(ctx, anonOwner); gone != nil {
		t.Error("anonymous plan row should be deleted")
	}
}

func TestMigrateExistingPlanWinsWhole(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t)
	seedAnonSession(t, s, "abc123")
	user := auth.User("42")

	anonPlan := &plan.WeeklyPlan{Owner: auth.Anonymous("abc123").Key(), Goal: scan.GoalLean, GeneratedAt: time.Now().UTC()}
	if err := s.plans.Save(ctx, anonPlan); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	userPlan := &plan.WeeklyPlan{Owner: user.Key(), Goal: scan.GoalMuscle, WeeklyFocus: "mine", GeneratedAt: time.Now().UTC()}
	if err := s.plans.Save(ctx, userPlan); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.coordinator.Migrate(ctx, "abc123", user); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	p, err := s.plans.Get(ctx, user.Key())
	if err != nil {
		t.Fatalf("Get plan failed: %v", err)
	}
	if p.Goal != scan.GoalMuscle || p.WeeklyFocus != "mine" {
		t.Errorf("existing plan must win whole, got %+v", p)
	}
}

func TestMigrateConcurrentSameSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t)
	seedAnonSession(t, s, "abc123")
	user := auth.User("42")

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.coordinator.Migrate(ctx, "abc123", user)
		}(i)
	}
	wg.Wait()

	var ok, already int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyMigrated):
			already++
		default:
			t.Errorf("unexpected migration error: %v", err)
		}
	}
	if ok != 1 || already != 1 {
		t.Errorf("expected exactly one winner, got ok=%d already=%d", ok, already)
	}
}
