package plan

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"fitness-coach/internal/library"
	"fitness-coach/internal/scan"
)

var dayIDPattern = regexp.MustCompile(`day-(\d+)`)

// ParseDayID extracts the day index from a day reference like "day-3".
func ParseDayID(dayID string) (int, error) {
	m := dayIDPattern.FindStringSubmatch(dayID)
	if m == nil {
		return 0, fmt.Errorf("invalid day_id format: %q", dayID)
	}
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 7 {
		return 0, fmt.Errorf("day index out of range in %q", dayID)
	}
	return day, nil
}

// ChatResult is the engine's answer to one chat turn. UpdatedDay is set only
// when Action is IntentAdjustWorkout; the caller splices it into its local
// schedule at the matching day index.
type ChatResult struct {
	ResponseText string   `json:"response_text"`
	Action       Intent   `json:"action,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	UpdatedDay   *PlanDay `json:"updated_day,omitempty"`
}

var weeklyFocusByGoal = map[scan.Goal]string{
	scan.GoalLean:     "Lean down: high-intensity conditioning with full body work to drop body fat while keeping muscle.",
	scan.GoalAthletic: "Build all-round athleticism: balanced strength and conditioning across the whole body.",
	scan.GoalMuscle:   "Build muscle: progressive strength and hypertrophy work with enough recovery to grow.",
}

// Engine generates weekly plans from the workout library and answers
// plan-adjustment chat turns. It keeps no conversation state: every chat
// call receives the full plan snapshot.
type Engine struct {
	plans    *Repository
	lib      *library.Repository
	agent    Agent
	restDays map[int]bool
}

// NewEngine creates a new Engine. restDays holds the 1-based day indices the
// weekly template reserves for rest.
func NewEngine(plans *Repository, lib *library.Repository, agent Agent, restDays []int) *Engine {
	rest := make(map[int]bool, len(restDays))
	for _, d := range restDays {
		rest[d] = true
	}
	return &Engine{plans: plans, lib: lib, agent: agent, restDays: rest}
}

// Generate builds the owner's weekly plan for a goal. When forceRefresh is
// false and a plan for the same goal already exists, it is returned
// unchanged. Selection is deterministic: suitable workouts rotate through
// the training days in library order, rest days follow the fixed template.
func (e *Engine) Generate(ctx context.Context, owner string, goal scan.Goal, forceRefresh bool) (*WeeklyPlan, error) {
	if !forceRefresh {
		existing, err := e.plans.Get(ctx, owner)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Goal == goal {
			return existing, nil
		}
	}

	workouts, err := e.lib.ListForGoal(ctx, goal)
	if err != nil {
		return nil, err
	}

	// Recovery sessions are not training picks; rest days come from the
	// template instead.
	training := workouts[:0:0]
	for _, w := range workouts {
		if !w.IsRecovery() {
			training = append(training, w)
		}
	}
	if len(training) == 0 {
		return nil, fmt.Errorf("%w: workout library has no entries for goal %s", ErrGenerationFailed, goal)
	}

	p := &WeeklyPlan{
		Owner:       owner,
		Goal:        goal,
		WeeklyFocus: weeklyFocusByGoal[goal],
		GeneratedAt: time.Now().UTC(),
	}

	next := 0
	for day := 1; day <= 7; day++ {
		if e.restDays[day] {
			p.Schedule = append(p.Schedule, PlanDay{
				Day:      day,
				DayName:  dayNames[day-1],
				IsRest:   true,
				Activity: "Rest",
				Notes:    "Recovery day. Light stretching is a good idea.",
			})
			continue
		}

		w := training[next%len(training)]
		next++
		p.Schedule = append(p.Schedule, PlanDay{
			Day:            day,
			DayName:        dayNames[day-1],
			WorkoutID:      w.ID,
			Activity:       w.DisplayTitle,
			Notes:          w.Description,
			WorkoutDetails: &w,
		})
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if err := e.plans.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Chat answers one adjustment-chat turn over the given plan snapshot. The
// engine never mutates the snapshot, reorders the schedule, or changes day
// indices; on IntentAdjustWorkout the caller splices UpdatedDay in itself.
func (e *Engine) Chat(ctx context.Context, message, dayID string, snapshot *WeeklyPlan) (ChatResult, error) {
	if snapshot == nil {
		return ChatResult{}, ErrPlanNotFound
	}

	dayIndex, err := ParseDayID(dayID)
	if err != nil {
		return ChatResult{}, err
	}
	day, ok := snapshot.DayAt(dayIndex)
	if !ok {
		return ChatResult{}, fmt.Errorf("day %d not present in plan", dayIndex)
	}

	workoutTitle := day.Activity
	if workoutTitle == "" {
		workoutTitle = "Unknown"
	}

	intent, err := e.agent.Classify(ctx, message, dayIndex, workoutTitle)
	if err != nil {
		return ChatResult{}, err
	}

	if intent != IntentAdjustWorkout {
		return ChatResult{
			ResponseText: "I can currently only help with adjusting your workout plan (e.g., 'make it shorter', 'too hard'). Other features coming soon!",
		}, nil
	}

	workouts, err := e.lib.List(ctx)
	if err != nil {
		return ChatResult{}, fmt.Errorf("%w: %v", ErrChatFailed, err)
	}

	adj, err := e.agent.Adjust(ctx, message, day, snapshot.WeeklyFocus, workouts)
	if err != nil {
		return ChatResult{}, err
	}

	updated := PlanDay{
		Day:      day.Day,
		DayName:  day.DayName,
		IsRest:   adj.IsRest,
		Activity: adj.NewActivityTitle,
		Notes:    adj.Summary,
	}
	if adj.IsRest {
		if updated.Activity == "" {
			updated.Activity = "Rest"
		}
	} else {
		updated.WorkoutID = adj.NewWorkoutID
		// Re-enrich with full library details when the pick is real.
		details, err := e.lib.Get(ctx, adj.NewWorkoutID)
		if err != nil {
			return ChatResult{}, fmt.Errorf("%w: %v", ErrChatFailed, err)
		}
		if details == nil {
			return ChatResult{}, fmt.Errorf("%w: adjusted workout %q not in library", ErrChatFailed, adj.NewWorkoutID)
		}
		updated.WorkoutDetails = details
		updated.Activity = details.DisplayTitle
	}
	if err := validateDay(updated); err != nil {
		return ChatResult{}, fmt.Errorf("%w: %v", ErrChatFailed, err)
	}

	return ChatResult{
		ResponseText: adj.AgentMessage,
		Action:       IntentAdjustWorkout,
		Summary:      adj.Summary,
		UpdatedDay:   &updated,
	}, nil
}
