package scan

import (
	"errors"
	"fmt"
	"time"
)

// ErrSessionNotFound is returned when no scan record exists for an identity.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownGoal is returned for goal keys outside the canonical set.
var ErrUnknownGoal = errors.New("unknown goal")

// Goal is a transformation path the user can work towards.
type Goal string

const (
	GoalLean     Goal = "lean"
	GoalAthletic Goal = "athletic"
	GoalMuscle   Goal = "muscle"
)

// Goals lists the canonical goal set in a fixed order.
func Goals() []Goal {
	return []Goal{GoalLean, GoalAthletic, GoalMuscle}
}

// ParseGoal validates a free-form goal key before any collaborator call.
func ParseGoal(s string) (Goal, error) {
	switch Goal(s) {
	case GoalLean, GoalAthletic, GoalMuscle:
		return Goal(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGoal, s)
}

// PotentialBody is one of the target physiques proposed by the vision model.
type PotentialBody struct {
	Type         string `json:"type"`
	GoalKey      Goal   `json:"goal_key"`
	VisualPrompt string `json:"visual_prompt"`
}

// Analysis is the structured result of a body photo analysis.
type Analysis struct {
	Category            string          `json:"category"`
	Reasoning           string          `json:"reasoning"`
	EstimatedBodyFat    float64         `json:"estimated_body_fat"`
	EstimatedMuscleMass float64         `json:"estimated_muscle_mass"`
	BodyTypeDescription string          `json:"body_type_description"`
	PotentialBodies     []PotentialBody `json:"potential_bodies"`
}

// GeneratedImage is one goal-conditioned transformation preview.
type GeneratedImage struct {
	Goal Goal   `json:"goal"`
	Ref  string `json:"ref"`
}

// Record holds everything the Observe phase accumulated for one identity.
// There is exactly one Record per identity; a new upload supersedes it.
type Record struct {
	Owner           string           `json:"owner"`
	SessionID       string           `json:"session_id,omitempty"`
	PhotoRef        string           `json:"photo_ref"`
	Analysis        *Analysis        `json:"analysis,omitempty"`
	GeneratedImages []GeneratedImage `json:"generated_images,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	ExpiresAt       time.Time        `json:"expires_at,omitempty"`
}

// ImageFor returns the generated image for a goal, if present.
func (r *Record) ImageFor(goal Goal) (GeneratedImage, bool) {
	for _, img := range r.GeneratedImages {
		if img.Goal == goal {
			return img, true
		}
	}
	return GeneratedImage{}, false
}

// SetImage inserts or replaces the generated image for its goal. Each goal
// appears at most once in GeneratedImages.
func (r *Record) SetImage(img GeneratedImage) {
	for i := range r.GeneratedImages {
		if r.GeneratedImages[i].Goal == img.Goal {
			r.GeneratedImages[i] = img
			return
		}
	}
	r.GeneratedImages = append(r.GeneratedImages, img)
}
