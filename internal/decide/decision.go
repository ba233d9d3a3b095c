package decide

import (
	"errors"
	"time"

	"fitness-coach/internal/llm"
	"fitness-coach/internal/scan"
)

// ErrNoSnapshot is returned when a suggestion is requested before the
// Observe phase has been completed and saved.
var ErrNoSnapshot = errors.New("no snapshot available")

// Source records who picked the selected path.
type Source string

const (
	SourceAISuggested  Source = "ai_suggested"
	SourceUserSelected Source = "user_selected"
)

// Snapshot is the frozen copy of Observe-phase output the Decide phase reads.
// It is not a live view: a later re-upload does not alter a saved snapshot.
type Snapshot struct {
	OriginalImageRef string                `json:"original_image_ref"`
	Analysis         scan.Analysis         `json:"analysis"`
	GeneratedImages  []scan.GeneratedImage `json:"generated_images"`
	SavedAt          time.Time             `json:"saved_at"`
}

// ImageFor returns the snapshot image for a goal, if present.
func (s *Snapshot) ImageFor(goal scan.Goal) (scan.GeneratedImage, bool) {
	for _, img := range s.GeneratedImages {
		if img.Goal == goal {
			return img, true
		}
	}
	return scan.GeneratedImage{}, false
}

// Decision is the per-identity goal decision state. Created empty, mutated
// by snapshot/commit operations, never deleted; the latest commit wins.
type Decision struct {
	Owner          string                  `json:"owner"`
	Snapshot       *Snapshot               `json:"snapshot,omitempty"`
	SelectedPath   scan.Goal               `json:"selected_path,omitempty"`
	Source         Source                  `json:"source,omitempty"`
	Recommendation *llm.PathRecommendation `json:"recommendation,omitempty"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// Completed reports whether the Decide phase is done for this identity.
// True iff a path has been selected.
func (d *Decision) Completed() bool {
	return d != nil && d.SelectedPath != ""
}
