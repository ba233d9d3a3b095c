package llm

import (
	"context"

	"fitness-coach/internal/scan"
	"fitness-coach/internal/shared"
)

// ContentResponse contains generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// VisionAnalyzer produces a structured body analysis from a photo.
type VisionAnalyzer interface {
	AnalyzeBody(ctx context.Context, image []byte, mimeType string) (scan.Analysis, shared.AgentMeta, error)
}

// ImageGenerator produces a goal-conditioned transformation image from a
// reference photo. Failures are per call; one goal's failure says nothing
// about the others.
type ImageGenerator interface {
	GeneratePhysique(ctx context.Context, image []byte, mimeType string, goal scan.Goal) ([]byte, shared.AgentMeta, error)
}

// GoalOutlook is the per-goal assessment inside a path recommendation.
type GoalOutlook struct {
	TimeEstimate string `json:"time_estimate"`
	EffortLevel  string `json:"effort_level"`
	Description  string `json:"description"`
}

// SuggestedPath is the model's pick plus its justification.
type SuggestedPath struct {
	Path            scan.Goal `json:"suggested_path"`
	Reasoning       string    `json:"reasoning"`
	ConfidenceScore float64   `json:"confidence_score"`
}

// PathRecommendation compares the user's current physique against each
// transformation goal. Shape mirrors the recommendation model's JSON output.
type PathRecommendation struct {
	Lean           GoalOutlook   `json:"lean"`
	Athletic       GoalOutlook   `json:"athletic"`
	Muscle         GoalOutlook   `json:"muscle"`
	Recommendation SuggestedPath `json:"recommendation"`
}

// RecommendationInput carries the snapshot images the recommender compares.
type RecommendationInput struct {
	Original []byte
	Lean     []byte
	Athletic []byte
	Muscle   []byte
	MimeType string
}

// PathRecommender assesses the gap between the current physique and each
// candidate goal.
type PathRecommender interface {
	RecommendPath(ctx context.Context, input RecommendationInput) (PathRecommendation, shared.AgentMeta, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}
