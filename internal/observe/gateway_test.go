package observe

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fitness-coach/internal/auth"
	"fitness-coach/internal/database"
	"fitness-coach/internal/scan"
	"fitness-coach/internal/shared"
	"fitness-coach/internal/storage"
)

type MockVision struct {
	analysis scan.Analysis
	err      error
}

func (m *MockVision) AnalyzeBody(ctx context.Context, image []byte, mimeType string) (scan.Analysis, shared.AgentMeta, error) {
	return m.analysis, shared.AgentMeta{AgentName: "vision"}, m.err
}

type MockImageGen struct {
	mu      sync.Mutex
	calls   []scan.Goal
	failOn  map[scan.Goal]error
	delayOn map[scan.Goal]time.Duration
}

func (m *MockImageGen) GeneratePhysique(ctx context.Context, image []byte, mimeType string, goal scan.Goal) ([]byte, shared.AgentMeta, error) {
	m.mu.Lock()
	m.calls = append(m.calls, goal)
	delay := m.delayOn[goal]
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err := m.failOn[goal]; err != nil {
		return nil, shared.AgentMeta{AgentName: "image_gen"}, err
	}
	return []byte("fake-" + string(goal)), shared.AgentMeta{AgentName: "image_gen"}, nil
}

type testGateway struct {
	gateway *Gateway
	scans   *scan.Repository
	store   *storage.ObjectStore
}

func newTestGateway(t *testing.T, vision *MockVision, images *MockImageGen) testGateway {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewObjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create object store: %v", err)
	}

	scans := scan.NewRepository(db.SQL)
	return testGateway{
		gateway: NewGateway(scans, store, vision, images, nil),
		scans:   scans,
		store:   store,
	}
}

func seedRecord(t *testing.T, tg testGateway, id auth.Identity, analyzed bool) {
	t.Helper()
	ctx := context.Background()
	ref := MediaPrefix(id) + "/photo.jpg"
	if err := tg.store.Put(ref, []byte("photo-bytes")); err != nil {
		t.Fatalf("failed to store photo: %v", err)
	}
	rec := &scan.Record{Owner: id.Key(), PhotoRef: ref, CreatedAt: time.Now().UTC()}
	if !id.IsUser() {
		rec.SessionID = id.ID
	}
	if analyzed {
		rec.Analysis = &scan.Analysis{Category: "average"}
	}
	if err := tg.scans.Save(ctx, rec); err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}
}

func TestMediaPrefix(t *testing.T) {
	if got := MediaPrefix(auth.Anonymous("abc123")); got != "anonymous/abc123" {
		t.Errorf("unexpected anonymous prefix %q", got)
	}
	if got := MediaPrefix(auth.User("42")); got != "users/42/observe" {
		t.Errorf("unexpected user prefix %q", got)
	}
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()
	id := auth.Anonymous("abc123")
	tg := newTestGateway(t, &MockVision{analysis: scan.Analysis{Category: "athletic"}}, &MockImageGen{})
	seedRecord(t, tg, id, false)

	analysis, err := tg.gateway.Analyze(ctx, id)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if analysis.Category != "athletic" {
		t.Errorf("expected category athletic, got %q", analysis.Category)
	}

	rec, err := tg.scans.Get(ctx, id.Key())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Analysis == nil || rec.Analysis.Category != "athletic" {
		t.Error("analysis was not persisted on the record")
	}
}

func TestAnalyzeMissingSession(t *testing.T) {
	tg := newTestGateway(t, &MockVision{}, &MockImageGen{})

	_, err := tg.gateway.Analyze(context.Background(), auth.Anonymous("missing"))
	if !errors.Is(err, scan.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAnalyzeCollaboratorFailure(t *testing.T) {
	id := auth.Anonymous("abc123")
	tg := newTestGateway(t, &MockVision{err: errors.New("model overloaded")}, &MockImageGen{})
	seedRecord(t, tg, id, false)

	_, err := tg.gateway.Analyze(context.Background(), id)
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Errorf("expected ErrAnalysisFailed, got %v", err)
	}
}

func TestGenerateRequiresAnalysis(t *testing.T) {
	id := auth.Anonymous("abc123")
	tg := newTestGateway(t, &MockVision{}, &MockImageGen{})
	seedRecord(t, tg, id, false)

	_, err := tg.gateway.Generate(context.Background(), id, scan.GoalLean)
	if !errors.Is(err, ErrAnalysisRequired) {
		t.Errorf("expected ErrAnalysisRequired, got %v", err)
	}
}

func TestGenerateStoresImage(t *testing.T) {
	ctx := context.Background()
	id := auth.Anonymous("abc123")
	tg := newTestGateway(t, &MockVision{}, &MockImageGen{})
	seedRecord(t, tg, id, true)

	img, err := tg.gateway.Generate(ctx, id, scan.GoalMuscle)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if img.Goal != scan.GoalMuscle {
		t.Errorf("expected goal muscle, got %s", img.Goal)
	}
	if !tg.store.Exists(img.Ref) {
		t.Errorf("generated image %q not in object store", img.Ref)
	}

	rec, err := tg.scans.Get(ctx, id.Key())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, ok := rec.ImageFor(scan.GoalMuscle); !ok {
		t.Error("generated image was not recorded on the scan record")
	}
}

func TestGenerateRepeatReplacesGoalImage(t *testing.T) {
	ctx := context.Background()
	id := auth.Anonymous("abc123")
	tg := newTestGateway(t, &MockVision{}, &MockImageGen{})
	seedRecord(t, tg, id, true)

	first, err := tg.gateway.Generate(ctx, id, scan.GoalLean)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	second, err := tg.gateway.Generate(ctx, id, scan.GoalLean)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if first.Ref == second.Ref {
		t.Error("expected a fresh ref per generation")
	}

	rec, err := tg.scans.Get(ctx, id.Key())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(rec.GeneratedImages) != 1 {
		t.Fatalf("expected one image per goal, got %d", len(rec.GeneratedImages))
	}
	if img, _ := rec.ImageFor(scan.GoalLean); img.Ref != second.Ref {
		t.Errorf("expected latest ref %q, got %q", second.Ref, img.Ref)
	}
}

func TestGenerateAll(t *testing.T) {
	ctx := context.Background()
	id := auth.Anonymous("abc123")
	tg := newTestGateway(t, &MockVision{}, &MockImageGen{})
	seedRecord(t, tg, id, true)

	results, err := tg.gateway.GenerateAll(ctx, id)
	if err != nil {
		t.Fatalf("GenerateAll failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, goal := range scan.Goals() {
		res, ok := results[goal]
		if !ok {
			t.Fatalf("missing result for goal %s", goal)
		}
		if res.Err != nil {
			t.Errorf("goal %s failed: %v", goal, res.Err)
		}
	}

	rec, err := tg.scans.Get(ctx, id.Key())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(rec.GeneratedImages) != 3 {
		t.Errorf("expected 3 persisted images, got %d", len(rec.GeneratedImages))
	}
}

func TestGenerateAllIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	id := auth.Anonymous("abc123")
	images := &MockImageGen{failOn: map[scan.Goal]error{scan.GoalAthletic: errors.New("quota exceeded")}}
	tg := newTestGateway(t, &MockVision{}, images)
	seedRecord(t, tg, id, true)

	results, err := tg.gateway.GenerateAll(ctx, id)
	if err != nil {
		t.Fatalf("GenerateAll failed: %v", err)
	}

	if !errors.Is(results[scan.GoalAthletic].Err, ErrGenerationFailed) {
		t.Errorf("expected athletic to fail, got %v", results[scan.GoalAthletic].Err)
	}
	for _, goal := range []scan.Goal{scan.GoalLean, scan.GoalMuscle} {
		if results[goal].Err != nil {
			t.Errorf("goal %s should succeed despite athletic failing: %v", goal, results[goal].Err)
		}
	}

	rec, err := tg.scans.Get(ctx, id.Key())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(rec.GeneratedImages) != 2 {
		t.Errorf("expected 2 persisted images, got %d", len(rec.GeneratedImages))
	}
}

func TestGenerateConcurrentSlowGoal(t *testing.T) {
	ctx := context.Background()
	id := auth.Anonymous("abc123")
	images := &MockImageGen{delayOn: map[scan.Goal]time.Duration{scan.GoalAthletic: 200 * time.Millisecond}}
	tg := newTestGateway(t, &MockVision{}, images)
	seedRecord(t, tg, id, true)

	// A slow athletic generation must not block or fail the lean one.
	goals := []scan.Goal{scan.GoalLean, scan.GoalAthletic}
	errs := make([]error, len(goals))
	var wg sync.WaitGroup
	for i, goal := range goals {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = tg.gateway.Generate(ctx, id, goal)
		}()
	}
	wg.Wait()

	for i, goal := range goals {
		if errs[i] != nil {
			t.Errorf("goal %s failed under concurrency: %v", goal, errs[i])
		}
	}

	rec, err := tg.scans.Get(ctx, id.Key())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(rec.GeneratedImages) != 2 {
		t.Fatalf("expected both goals persisted exactly once, got %d images", len(rec.GeneratedImages))
	}
	for _, goal := range goals {
		if _, ok := rec.ImageFor(goal); !ok {
			t.Errorf("goal %s missing from generated images", goal)
		}
	}
}

func TestGenerateAllRepeated(t *testing.T) {
	ctx := context.Background()
	id := auth.Anonymous("abc123")
	tg := newTestGateway(t, &MockVision{}, &MockImageGen{})
	seedRecord(t, tg, id, true)

	for i := 0; i < 25; i++ {
		results, err := tg.gateway.GenerateAll(ctx, id)
		if err != nil {
			t.Fatalf("GenerateAll iteration %d failed: %v", i, err)
		}
		for goal, res := range results {
			if res.Err != nil {
				t.Fatalf("goal %s failed on iteration %d: %v", goal, i, res.Err)
			}
		}
	}
}

func TestGenerateAllMissingSession(t *testing.T) {
	tg := newTestGateway(t, &MockVision{}, &MockImageGen{})

	_, err := tg.gateway.GenerateAll(context.Background(), auth.Anonymous("missing"))
	if !errors.Is(err, scan.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}
