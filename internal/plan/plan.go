package plan

import (
	"errors"
	"fmt"
	"time"

	"fitness-coach/internal/library"
	"fitness-coach/internal/scan"
)

// ErrGenerationFailed is returned when no plan can be built for a goal.
var ErrGenerationFailed = errors.New("plan generation failed")

// ErrChatFailed is returned when the chat collaborator fails. The caller's
// plan state is untouched; it should show a fallback message.
var ErrChatFailed = errors.New("chat failed")

// ErrPlanNotFound is returned when chat is invoked with no active plan.
var ErrPlanNotFound = errors.New("no active plan found")

var dayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// PlanDay is one day of a weekly plan. Rest days never carry a workout id.
type PlanDay struct {
	Day            int              `json:"day"`
	DayName        string           `json:"day_name"`
	IsRest         bool             `json:"is_rest"`
	WorkoutID      string           `json:"workout_id,omitempty"`
	Activity       string           `json:"activity"`
	Notes          string           `json:"notes,omitempty"`
	WorkoutDetails *library.Workout `json:"workout_details,omitempty"`
}

// WeeklyPlan is the 7-day schedule generated for a committed goal.
type WeeklyPlan struct {
	Owner       string    `json:"owner"`
	Goal        scan.Goal `json:"goal"`
	WeeklyFocus string    `json:"weekly_focus"`
	Schedule    []PlanDay `json:"schedule"`
	GeneratedAt time.Time `json:"generated_at"`
}

// DayAt returns the schedule entry with the given day index.
func (p *WeeklyPlan) DayAt(day int) (PlanDay, bool) {
	for _, d := range p.Schedule {
		if d.Day == day {
			return d, true
		}
	}
	return PlanDay{}, false
}

// Validate checks the weekly plan invariants: exactly 7 days, unique day
// indices 1..7, and rest/workout mutual exclusivity.
func (p *WeeklyPlan) Validate() error {
	if len(p.Schedule) != 7 {
		return fmt.Errorf("schedule has %d days, want 7", len(p.Schedule))
	}
	seen := make(map[int]bool, 7)
	for _, d := range p.Schedule {
		if d.Day < 1 || d.Day > 7 {
			return fmt.Errorf("day index %d out of range", d.Day)
		}
		if seen[d.Day] {
			return fmt.Errorf("duplicate day index %d", d.Day)
		}
		seen[d.Day] = true
		if err := validateDay(d); err != nil {
			return err
		}
	}
	return nil
}

func validateDay(d PlanDay) error {
	if d.IsRest && d.WorkoutID != "" {
		return fmt.Errorf("day %d is a rest day but carries workout %s", d.Day, d.WorkoutID)
	}
	if !d.IsRest && d.WorkoutID == "" {
		return fmt.Errorf("day %d has no workout and is not a rest day", d.Day)
	}
	return nil
}

// SpliceDay replaces the schedule entry matching updated.Day, preserving
// order and every other entry. Returns an error when the day is absent or
// the updated day breaks the invariants.
func (p *WeeklyPlan) SpliceDay(updated PlanDay) error {
	if err := validateDay(updated); err != nil {
		return err
	}
	for i := range p.Schedule {
		if p.Schedule[i].Day == updated.Day {
			p.Schedule[i] = updated
			return nil
		}
	}
	return fmt.Errorf("day %d not present in schedule", updated.Day)
}

// MoveDay is the client-local reorder: the entry at position from (1-based)
// moves to position to, everything shifts, and day indices are renumbered
// sequentially 1..7. Content moves with its card; nothing regenerates.
func MoveDay(schedule []PlanDay, from, to int) ([]PlanDay, error) {
	n := len(schedule)
	if from < 1 || from > n || to < 1 || to > n {
		return nil, fmt.Errorf("move %d -> %d out of range for %d days", from, to, n)
	}

	out := make([]PlanDay, 0, n)
	out = append(out, schedule...)
	moved := out[from-1]
	out = append(out[:from-1], out[from:]...)
	out = append(out[:to-1], append([]PlanDay{moved}, out[to-1:]...)...)

	for i := range out {
		out[i].Day = i + 1
		out[i].DayName = dayNames[i]
	}
	return out, nil
}
