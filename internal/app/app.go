package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"time"

	"fitness-coach/internal/auth"
	"fitness-coach/internal/config"
	"fitness-coach/internal/decide"
	"fitness-coach/internal/llm"
	"fitness-coach/internal/metrics"
	"fitness-coach/internal/migration"
	"fitness-coach/internal/observe"
	"fitness-coach/internal/phase"
	"fitness-coach/internal/plan"
	"fitness-coach/internal/scan"
	"fitness-coach/internal/shared"
	"fitness-coach/internal/storage"

	"github.com/google/uuid"
)

// ErrUploadFailed is returned when the photo cannot be stored.
var ErrUploadFailed = errors.New("upload failed")

// ErrSnapshotIncomplete is returned when a snapshot save is attempted
// without an analysis and at least one generated image.
var ErrSnapshotIncomplete = errors.New("snapshot requires analysis and at least one generated image")

// ErrDecisionRequired is returned when plan generation is requested before
// a path has been committed.
var ErrDecisionRequired = errors.New("no path selected yet")

// App wires the core operations over the repositories, the object store,
// and the AI collaborators. Every operation takes an explicit Identity.
type App struct {
	cfg          *config.Config
	store        *storage.ObjectStore
	scans        *scan.Repository
	decisions    *decide.Repository
	plans        *plan.Repository
	gateway      *observe.Gateway
	engine       *plan.Engine
	coordinator  *migration.Coordinator
	recommender  llm.PathRecommender
	metricsStore *metrics.Store
}

// NewApp creates and initializes a new App instance.
func NewApp(
	cfg *config.Config,
	store *storage.ObjectStore,
	scans *scan.Repository,
	decisions *decide.Repository,
	plans *plan.Repository,
	gateway *observe.Gateway,
	engine *plan.Engine,
	coordinator *migration.Coordinator,
	recommender llm.PathRecommender,
	metricsStore *metrics.Store,
) *App {
	return &App{
		cfg:          cfg,
		store:        store,
		scans:        scans,
		decisions:    decisions,
		plans:        plans,
		gateway:      gateway,
		engine:       engine,
		coordinator:  coordinator,
		recommender:  recommender,
		metricsStore: metricsStore,
	}
}

// UploadAnonymous stores a photo for an anonymous session, minting a fresh
// session id when none is supplied. Continuing an existing session
// supersedes its prior scan record and generated images.
func (a *App) UploadAnonymous(ctx context.Context, sessionID, filename string, photo []byte) (*scan.Record, error) {
	if sessionID == "" || sessionID == "null" {
		sessionID = uuid.NewString()
	}
	return a.upload(ctx, auth.Anonymous(sessionID), filename, photo)
}

// Upload stores a photo for an authenticated user, superseding any prior
// scan record.
func (a *App) Upload(ctx context.Context, id auth.Identity, filename string, photo []byte) (*scan.Record, error) {
	return a.upload(ctx, id, filename, photo)
}

func (a *App) upload(ctx context.Context, id auth.Identity, filename string, photo []byte) (*scan.Record, error) {
	name := path.Base(filename)
	if name == "." || name == "/" || name == "" {
		name = "photo.jpg"
	}
	// Each upload gets a fresh ref. Prior blobs stay put so a saved
	// Decide snapshot keeps resolving the images it references.
	ref := fmt.Sprintf("%s/%s_%s", observe.MediaPrefix(id), uuid.NewString(), name)
	if err := a.store.Put(ref, photo); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	now := time.Now().UTC()
	rec := &scan.Record{
		Owner:     id.Key(),
		PhotoRef:  ref,
		CreatedAt: now,
	}
	if !id.IsUser() {
		rec.SessionID = id.ID
		rec.ExpiresAt = now.AddDate(0, 0, a.cfg.SessionTTLDays)
	}
	if err := a.scans.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return rec, nil
}

// Analyze runs the vision analysis over the identity's uploaded photo.
func (a *App) Analyze(ctx context.Context, id auth.Identity) (*scan.Analysis, error) {
	return a.gateway.Analyze(ctx, id)
}

// Generate produces the transformation image for one goal.
func (a *App) Generate(ctx context.Context, id auth.Identity, goalKey string) (scan.GeneratedImage, error) {
	goal, err := scan.ParseGoal(goalKey)
	if err != nil {
		return scan.GeneratedImage{}, err
	}
	return a.gateway.Generate(ctx, id, goal)
}

// GenerateAll produces all three goal images concurrently.
func (a *App) GenerateAll(ctx context.Context, id auth.Identity) (map[scan.Goal]observe.GoalResult, error) {
	return a.gateway.GenerateAll(ctx, id)
}

// GetResults returns the scan record for an anonymous session. After a
// migration the session id resolves, read-only, to the authenticated record.
func (a *App) GetResults(ctx context.Context, sessionID string) (*scan.Record, error) {
	rec, err := a.scans.Get(ctx, auth.Anonymous(sessionID).Key())
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, scan.ErrSessionNotFound) {
		return nil, err
	}

	owner, aliasErr := a.scans.ResolveAlias(ctx, sessionID)
	if aliasErr != nil {
		return nil, err
	}
	return a.scans.Get(ctx, owner)
}

// Migrate moves an anonymous session's state into an authenticated identity.
func (a *App) Migrate(ctx context.Context, sessionID string, user auth.Identity) error {
	return a.coordinator.Migrate(ctx, sessionID, user)
}

// SaveSnapshot freezes the Observe phase output into the identity's goal
// decision. Later uploads do not alter an already-saved snapshot.
func (a *App) SaveSnapshot(ctx context.Context, id auth.Identity, originalRef string, analysis scan.Analysis, images []scan.GeneratedImage) error {
	if analysis.Category == "" || len(images) == 0 {
		return ErrSnapshotIncomplete
	}
	for _, img := range images {
		if _, err := scan.ParseGoal(string(img.Goal)); err != nil {
			return err
		}
	}

	snap := decide.Snapshot{
		OriginalImageRef: originalRef,
		Analysis:         analysis,
		GeneratedImages:  images,
		SavedAt:          time.Now().UTC(),
	}
	return a.decisions.SaveSnapshot(ctx, id.Key(), snap)
}

// Suggest computes a recommended path from the saved snapshot. It is a
// side-channel read: the stored decision is not mutated.
func (a *App) Suggest(ctx context.Context, id auth.Identity) (*llm.PathRecommendation, error) {
	dec, err := a.decisions.Get(ctx, id.Key())
	if err != nil {
		return nil, err
	}
	if dec.Snapshot == nil {
		return nil, decide.ErrNoSnapshot
	}

	input := llm.RecommendationInput{MimeType: "image/jpeg"}
	input.Original, err = a.store.Get(dec.Snapshot.OriginalImageRef)
	if err != nil {
		return nil, fmt.Errorf("%w: original image unavailable: %v", decide.ErrNoSnapshot, err)
	}
	for _, goal := range scan.Goals() {
		img, ok := dec.Snapshot.ImageFor(goal)
		if !ok {
			return nil, fmt.Errorf("%w: snapshot has no image for goal %s", decide.ErrNoSnapshot, goal)
		}
		data, err := a.store.Get(img.Ref)
		if err != nil {
			return nil, fmt.Errorf("%w: image for goal %s unavailable: %v", decide.ErrNoSnapshot, goal, err)
		}
		switch goal {
		case scan.GoalLean:
			input.Lean = data
		case scan.GoalAthletic:
			input.Athletic = data
		case scan.GoalMuscle:
			input.Muscle = data
		}
	}

	rec, meta, err := a.recommender.RecommendPath(ctx, input)
	a.recordMeta(meta)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Commit selects a transformation path. Last write wins; committing again
// while already acting only updates the selection.
func (a *App) Commit(ctx context.Context, id auth.Identity, pathKey string, source decide.Source, rec *llm.PathRecommendation) (*decide.Decision, error) {
	goal, err := scan.ParseGoal(pathKey)
	if err != nil {
		return nil, err
	}
	if source != decide.SourceAISuggested {
		source = decide.SourceUserSelected
	}
	return a.decisions.Commit(ctx, id.Key(), goal, source, rec)
}

// State reports the identity's decision and the furthest phase reached.
func (a *App) State(ctx context.Context, id auth.Identity) (*decide.Decision, phase.Phase, error) {
	dec, err := a.decisions.Get(ctx, id.Key())
	if err != nil {
		return nil, phase.Observing, err
	}
	rec, err := a.scans.Get(ctx, id.Key())
	if err != nil && !errors.Is(err, scan.ErrSessionNotFound) {
		return nil, phase.Observing, err
	}
	return dec, phase.Current(rec, dec), nil
}

// GeneratePlan builds (or returns) the weekly plan. With an empty goalKey
// the committed path is used; a stored plan for a different goal is lazily
// discarded by regeneration.
func (a *App) GeneratePlan(ctx context.Context, id auth.Identity, goalKey string, forceRefresh bool) (*plan.WeeklyPlan, error) {
	var goal scan.Goal
	if goalKey != "" {
		g, err := scan.ParseGoal(goalKey)
		if err != nil {
			return nil, err
		}
		goal = g
	} else {
		dec, err := a.decisions.Get(ctx, id.Key())
		if err != nil {
			return nil, err
		}
		if !dec.Completed() {
			return nil, ErrDecisionRequired
		}
		goal = dec.SelectedPath
	}
	return a.engine.Generate(ctx, id.Key(), goal, forceRefresh)
}

// GetPlan returns the identity's weekly plan, or nil when none exists.
func (a *App) GetPlan(ctx context.Context, id auth.Identity) (*plan.WeeklyPlan, error) {
	return a.plans.Get(ctx, id.Key())
}

// Chat answers one adjustment-chat turn. When the agent adjusts a day the
// replacement is spliced into the stored plan; on any failure the stored
// plan is left exactly as it was.
func (a *App) Chat(ctx context.Context, id auth.Identity, message, dayID string, snapshot *plan.WeeklyPlan) (plan.ChatResult, error) {
	current := snapshot
	if current == nil {
		stored, err := a.plans.Get(ctx, id.Key())
		if err != nil {
			return plan.ChatResult{}, err
		}
		if stored == nil {
			return plan.ChatResult{}, plan.ErrPlanNotFound
		}
		current = stored
	}

	result, err := a.engine.Chat(ctx, message, dayID, current)
	if err != nil {
		return plan.ChatResult{}, err
	}

	if result.Action == plan.IntentAdjustWorkout && result.UpdatedDay != nil {
		if err := current.SpliceDay(*result.UpdatedDay); err != nil {
			return plan.ChatResult{}, fmt.Errorf("%w: %v", plan.ErrChatFailed, err)
		}
		current.Owner = id.Key()
		if err := a.plans.Save(ctx, current); err != nil {
			return plan.ChatResult{}, err
		}
	}
	return result, nil
}

// MoveCard renumbers a plan's schedule after a client-side card move and
// persists the result. Content moves with its card; nothing regenerates.
func (a *App) MoveCard(ctx context.Context, id auth.Identity, from, to int) (*plan.WeeklyPlan, error) {
	stored, err := a.plans.Get(ctx, id.Key())
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, plan.ErrPlanNotFound
	}

	reordered, err := plan.MoveDay(stored.Schedule, from, to)
	if err != nil {
		return nil, err
	}
	stored.Schedule = reordered
	if err := a.plans.Save(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func (a *App) recordMeta(meta shared.AgentMeta) {
	if a.metricsStore == nil {
		return
	}
	if err := a.metricsStore.RecordMeta(meta); err != nil {
		log.Printf("Warning: failed to record metrics for %s: %v", meta.AgentName, err)
	}
}
