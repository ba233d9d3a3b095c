package observe

import (
	"context"
	"errors"
	"fmt"
	"log"

	"fitness-coach/internal/auth"
	"fitness-coach/internal/llm"
	"fitness-coach/internal/scan"
	"fitness-coach/internal/shared"
	"fitness-coach/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrAnalysisFailed is returned when the vision collaborator fails or the
// photo cannot be read. The call is never retried internally.
var ErrAnalysisFailed = errors.New("analysis failed")

// ErrGenerationFailed is returned when image generation fails for a goal.
var ErrGenerationFailed = errors.New("image generation failed")

// ErrAnalysisRequired is returned when generation is requested before the
// photo has been analyzed.
var ErrAnalysisRequired = errors.New("analysis required before generation")

// MetricsRecorder receives metadata for each collaborator execution.
type MetricsRecorder interface {
	RecordMeta(meta shared.AgentMeta) error
}

// Gateway wraps the vision and generation collaborators and persists their
// results onto the caller's scan record.
type Gateway struct {
	scans   *scan.Repository
	store   *storage.ObjectStore
	vision  llm.VisionAnalyzer
	images  llm.ImageGenerator
	metrics MetricsRecorder
}

// NewGateway creates a new Gateway.
func NewGateway(scans *scan.Repository, store *storage.ObjectStore, vision llm.VisionAnalyzer, images llm.ImageGenerator, metrics MetricsRecorder) *Gateway {
	return &Gateway{
		scans:   scans,
		store:   store,
		vision:  vision,
		images:  images,
		metrics: metrics,
	}
}

// MediaPrefix returns the object-store prefix an identity's media lives under.
func MediaPrefix(id auth.Identity) string {
	if id.IsUser() {
		return "users/" + id.ID + "/observe"
	}
	return "anonymous/" + id.ID
}

// Analyze runs the vision collaborator once over the identity's uploaded
// photo and persists the result, replacing any prior analysis.
func (g *Gateway) Analyze(ctx context.Context, id auth.Identity) (*scan.Analysis, error) {
	rec, err := g.scans.Get(ctx, id.Key())
	if err != nil {
		return nil, err
	}

	photo, err := g.store.Get(rec.PhotoRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	analysis, meta, err := g.vision.AnalyzeBody(ctx, photo, "image/jpeg")
	g.record(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	if err := g.scans.UpdateAnalysis(ctx, id.Key(), analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// Generate produces the transformation image for a single goal, stores it,
// and upserts it onto the scan record. A repeat call for the same goal
// replaces the earlier entry.
func (g *Gateway) Generate(ctx context.Context, id auth.Identity, goal scan.Goal) (scan.GeneratedImage, error) {
	rec, err := g.scans.Get(ctx, id.Key())
	if err != nil {
		return scan.GeneratedImage{}, err
	}
	if rec.Analysis == nil {
		return scan.GeneratedImage{}, ErrAnalysisRequired
	}

	photo, err := g.store.Get(rec.PhotoRef)
	if err != nil {
		return scan.GeneratedImage{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	generated, meta, err := g.images.GeneratePhysique(ctx, photo, "image/jpeg", goal)
	g.record(meta)
	if err != nil {
		return scan.GeneratedImage{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	ref := fmt.Sprintf("%s/generated/%s_%s.jpg", MediaPrefix(id), goal, uuid.NewString())
	if err := g.store.Put(ref, generated); err != nil {
		return scan.GeneratedImage{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	img := scan.GeneratedImage{Goal: goal, Ref: ref}
	if err := g.scans.UpsertImage(ctx, id.Key(), img); err != nil {
		return scan.GeneratedImage{}, err
	}
	return img, nil
}

// GoalResult is the outcome of one goal's generation.
type GoalResult struct {
	Image scan.GeneratedImage
	Err   error
}

// GenerateAll issues the three goal generations concurrently. Each result is
// persisted as it completes; one goal failing or stalling never blocks the
// others. The per-goal outcomes are returned for the caller to report.
func (g *Gateway) GenerateAll(ctx context.Context, id auth.Identity) (map[scan.Goal]GoalResult, error) {
	// Fail fast on missing record before spawning anything.
	if _, err := g.scans.Get(ctx, id.Key()); err != nil {
		return nil, err
	}

	goals := scan.Goals()
	results := make([]GoalResult, len(goals))

	var eg errgroup.Group
	for i, goal := range goals {
		eg.Go(func() error {
			img, err := g.Generate(ctx, id, goal)
			results[i] = GoalResult{Image: img, Err: err}
			if err != nil {
				log.Printf("Warning: generation for goal %s failed: %v", goal, err)
			}
			return nil
		})
	}
	// Goroutines never return errors; failures stay isolated per goal.
	_ = eg.Wait()

	out := make(map[scan.Goal]GoalResult, len(goals))
	for i, goal := range goals {
		out[goal] = results[i]
	}
	return out, nil
}

func (g *Gateway) record(meta shared.AgentMeta) {
	if g.metrics == nil {
		return
	}
	if err := g.metrics.RecordMeta(meta); err != nil {
		log.Printf("Warning: failed to record metrics for %s: %v", meta.AgentName, err)
	}
}
