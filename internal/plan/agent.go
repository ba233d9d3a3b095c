package plan

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"fitness-coach/internal/library"
	"fitness-coach/internal/llm"
)

//go:embed intent_prompt.md
var intentPrompt string

//go:embed adjust_prompt.md
var adjustPrompt string

// Intent is the closed set of actions the chat agent can take. Expand this
// enum deliberately; free-text intents are never acted on directly.
type Intent string

const (
	IntentAdjustWorkout  Intent = "ADJUST_WORKOUT"
	IntentExplainWorkout Intent = "EXPLAIN_WORKOUT"
	IntentMotivation     Intent = "MOTIVATION"
	IntentOther          Intent = "OTHER"
)

// Adjustment is the structured result of a workout adjustment request.
type Adjustment struct {
	NewWorkoutID     string `json:"new_workout_id"`
	NewActivityTitle string `json:"new_activity_title"`
	IsRest           bool   `json:"is_rest"`
	Summary          string `json:"reasoning_summary"`
	AgentMessage     string `json:"agent_message"`
}

// Agent classifies chat messages and proposes single-day adjustments.
type Agent interface {
	Classify(ctx context.Context, message string, dayIndex int, workoutTitle string) (Intent, error)
	Adjust(ctx context.Context, message string, day PlanDay, weeklyFocus string, workouts []library.Workout) (Adjustment, error)
}

// LLMAgent implements Agent on top of a text generator.
type LLMAgent struct {
	textGen llm.TextGenerator
}

// NewLLMAgent creates a new LLMAgent.
func NewLLMAgent(textGen llm.TextGenerator) *LLMAgent {
	return &LLMAgent{textGen: textGen}
}

type intentPromptData struct {
	Message      string
	DayIndex     int
	WorkoutTitle string
}

// Classify maps a free-form chat message onto the Intent enum. Unparseable
// responses fall back to IntentOther rather than failing the turn.
func (a *LLMAgent) Classify(ctx context.Context, message string, dayIndex int, workoutTitle string) (Intent, error) {
	prompt, err := renderPrompt("intent", intentPrompt, intentPromptData{
		Message:      message,
		DayIndex:     dayIndex,
		WorkoutTitle: workoutTitle,
	})
	if err != nil {
		return IntentOther, err
	}

	resp, err := a.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return IntentOther, fmt.Errorf("%w: %v", ErrChatFailed, err)
	}

	raw := strings.ToUpper(strings.TrimSpace(resp.Content))
	switch {
	case strings.Contains(raw, "ADJUST"):
		return IntentAdjustWorkout, nil
	case strings.Contains(raw, "EXPLAIN"):
		return IntentExplainWorkout, nil
	case strings.Contains(raw, "MOTIVATION"):
		return IntentMotivation, nil
	}
	return IntentOther, nil
}

type adjustPromptData struct {
	Message     string
	DayIndex    int
	WeeklyFocus string
	Activity    string
	WorkoutID   string
	Workouts    []library.Workout
}

// Adjust asks the model to pick a replacement workout (or a rest day) for
// one plan day given the user's constraint.
func (a *LLMAgent) Adjust(ctx context.Context, message string, day PlanDay, weeklyFocus string, workouts []library.Workout) (Adjustment, error) {
	activity := day.Activity
	if activity == "" {
		activity = "Rest"
	}
	workoutID := day.WorkoutID
	if workoutID == "" {
		workoutID = "None"
	}

	prompt, err := renderPrompt("adjust", adjustPrompt, adjustPromptData{
		Message:     message,
		DayIndex:    day.Day,
		WeeklyFocus: weeklyFocus,
		Activity:    activity,
		WorkoutID:   workoutID,
		Workouts:    workouts,
	})
	if err != nil {
		return Adjustment{}, err
	}

	resp, err := a.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return Adjustment{}, fmt.Errorf("%w: %v", ErrChatFailed, err)
	}

	var adj Adjustment
	if err := json.Unmarshal([]byte(resp.Content), &adj); err != nil {
		return Adjustment{}, fmt.Errorf("%w: failed to parse adjustment: %v. Response: %s", ErrChatFailed, err, resp.Content)
	}
	return adj, nil
}

func renderPrompt(name, tmpl string, data interface{}) (string, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
