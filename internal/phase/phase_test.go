package phase

import (
	"testing"

	"fitness-coach/internal/decide"
	"fitness-coach/internal/scan"
)

func TestCanEnterDecide(t *testing.T) {
	t.Run("NilRecord", func(t *testing.T) {
		if CanEnterDecide(nil) {
			t.Error("Expected false for nil record")
		}
	})

	t.Run("NoAnalysis", func(t *testing.T) {
		rec := &scan.Record{
			GeneratedImages: []scan.GeneratedImage{{Goal: scan.GoalLean, Ref: "a"}},
		}
		if CanEnterDecide(rec) {
			t.Error("Expected false without analysis")
		}
	})

	t.Run("NoImages", func(t *testing.T) {
		rec := &scan.Record{Analysis: &scan.Analysis{Category: "Average"}}
		if CanEnterDecide(rec) {
			t.Error("Expected false without generated images")
		}
	})

	t.Run("Complete", func(t *testing.T) {
		rec := &scan.Record{
			Analysis:        &scan.Analysis{Category: "Average"},
			GeneratedImages: []scan.GeneratedImage{{Goal: scan.GoalLean, Ref: "a"}},
		}
		if !CanEnterDecide(rec) {
			t.Error("Expected true with analysis and one image")
		}
	})
}

func TestCanEnterAct(t *testing.T) {
	if CanEnterAct(&decide.Decision{}) {
		t.Error("Expected false for an empty decision")
	}
	if !CanEnterAct(&decide.Decision{SelectedPath: scan.GoalMuscle}) {
		t.Error("Expected true once a path is selected")
	}
}

func TestCurrent(t *testing.T) {
	rec := &scan.Record{
		Analysis:        &scan.Analysis{Category: "Average"},
		GeneratedImages: []scan.GeneratedImage{{Goal: scan.GoalLean, Ref: "a"}},
	}

	t.Run("FreshIdentity", func(t *testing.T) {
		if got := Current(nil, &decide.Decision{}); got != Observing {
			t.Errorf("Expected Observing, got %s", got)
		}
	})

	t.Run("ObserveComplete", func(t *testing.T) {
		if got := Current(rec, &decide.Decision{}); got != Deciding {
			t.Errorf("Expected Deciding, got %s", got)
		}
	})

	t.Run("SnapshotSavedButRecordSuperseded", func(t *testing.T) {
		// A re-upload wipes the live record, but a saved snapshot keeps the
		// identity in Deciding.
		dec := &decide.Decision{Snapshot: &decide.Snapshot{OriginalImageRef: "ref"}}
		if got := Current(&scan.Record{}, dec); got != Deciding {
			t.Errorf("Expected Deciding, got %s", got)
		}
	})

	t.Run("PathCommitted", func(t *testing.T) {
		dec := &decide.Decision{SelectedPath: scan.GoalLean}
		if got := Current(rec, dec); got != Acting {
			t.Errorf("Expected Acting, got %s", got)
		}
	})

	t.Run("RecommitDoesNotRevert", func(t *testing.T) {
		dec := &decide.Decision{SelectedPath: scan.GoalAthletic}
		if got := Current(nil, dec); got != Acting {
			t.Errorf("Expected Acting even without a live record, got %s", got)
		}
	})
}
