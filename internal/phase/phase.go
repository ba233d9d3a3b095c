package phase

import (
	"fitness-coach/internal/decide"
	"fitness-coach/internal/scan"
)

// Phase is one step of the fitness journey.
type Phase string

const (
	Observing Phase = "observing"
	Deciding  Phase = "deciding"
	Acting    Phase = "acting"
)

// CanEnterDecide reports whether the Observe phase is complete for a scan
// record: analysis present and at least one generated transformation image.
func CanEnterDecide(rec *scan.Record) bool {
	return rec != nil && rec.Analysis != nil && len(rec.GeneratedImages) > 0
}

// CanEnterAct reports whether the Decide phase is complete: a path has been
// selected. Re-selecting a path later does not revert this.
func CanEnterAct(dec *decide.Decision) bool {
	return dec.Completed()
}

// Current returns the furthest phase the identity has reached. The result
// is advisory: callers decide what to do with it, nothing here redirects.
func Current(rec *scan.Record, dec *decide.Decision) Phase {
	if CanEnterAct(dec) {
		return Acting
	}
	if dec != nil && dec.Snapshot != nil {
		return Deciding
	}
	if CanEnterDecide(rec) {
		return Deciding
	}
	return Observing
}
