package library

import (
	"fitness-coach/internal/scan"
)

// Workout is one entry in the workout library.
type Workout struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	DisplayTitle string   `json:"display_title"`
	Trainer      string   `json:"trainer"`
	URL          string   `json:"url"`
	DurationMins int      `json:"duration_mins"`
	Difficulty   string   `json:"difficulty"`
	Focus        []string `json:"focus"`
	Exercises    []string `json:"exercises,omitempty"`
	Description  string   `json:"description"`
}

// focusByGoal maps each transformation goal to the focus tags that suit it.
var focusByGoal = map[scan.Goal][]string{
	scan.GoalLean:     {"HIIT", "Cardio", "Fat Loss", "Full Body", "Abs", "Core", "Endurance"},
	scan.GoalAthletic: {"Full Body", "Strength", "Upper Body", "Legs", "Core", "Endurance"},
	scan.GoalMuscle:   {"Hypertrophy", "Strength", "Legs", "Upper Body", "Glutes", "Dumbbells"},
}

// SuitsGoal reports whether a workout's focus tags fit a goal.
func (w Workout) SuitsGoal(goal scan.Goal) bool {
	wanted, ok := focusByGoal[goal]
	if !ok {
		return false
	}
	for _, f := range w.Focus {
		for _, want := range wanted {
			if f == want {
				return true
			}
		}
	}
	return false
}

// IsRecovery reports whether a workout is a stretch/recovery session rather
// than a training one.
func (w Workout) IsRecovery() bool {
	for _, f := range w.Focus {
		if f == "Recovery" || f == "Stretch" || f == "Flexibility" {
			return true
		}
	}
	return false
}

// SeedWorkouts is the curated starter library, used until real ingestion has
// run. Mirrors the original Caroline Girvan selection.
func SeedWorkouts() []Workout {
	return []Workout{
		{
			ID:           "cg_lean_1",
			Title:        "20 MIN FULL BODY WORKOUT // No Equipment | Caroline Girvan",
			DisplayTitle: "20 Min Full Body (No Equipment)",
			Trainer:      "Caroline Girvan",
			URL:          "https://www.youtube.com/watch?v=1vRto-2MMZo",
			DurationMins: 20,
			Difficulty:   "Beginner/Intermediate",
			Focus:        []string{"Full Body", "No Equipment", "Endurance"},
			Description:  "A full body workout using just your bodyweight. Great for getting lean and toning up without gym equipment.",
		},
		{
			ID:           "cg_legs_1",
			Title:        "30 MIN DUMBBELL LEG WORKOUT | Caroline Girvan",
			DisplayTitle: "30 Min Dumbbell Legs",
			Trainer:      "Caroline Girvan",
			URL:          "https://www.youtube.com/watch?v=4Tz1LqGkQ9E",
			DurationMins: 30,
			Difficulty:   "Intermediate",
			Focus:        []string{"Legs", "Glutes", "Strength", "Dumbbells"},
			Description:  "Focused leg day using dumbbells. Targets quads, hamstrings and glutes for building definition and strength.",
		},
		{
			ID:           "cg_upper_1",
			Title:        "15 MIN UPPER BODY WORKOUT - Shoulders & Arms | Caroline Girvan",
			DisplayTitle: "15 Min Shoulders & Arms",
			Trainer:      "Caroline Girvan",
			URL:          "https://www.youtube.com/watch?v=u31qwQUeGuM",
			DurationMins: 15,
			Difficulty:   "Intermediate",
			Focus:        []string{"Upper Body", "Arms", "Shoulders", "Dumbbells"},
			Description:  "Quick but intense upper body blast focusing on sculpting shoulders and arms.",
		},
		{
			ID:           "cg_hiit_1",
			Title:        "15 MIN HIIT CARDIO WORKOUT | No Equipment | Caroline Girvan",
			DisplayTitle: "15 Min HIIT Cardio",
			Trainer:      "Caroline Girvan",
			URL:          "https://www.youtube.com/watch?v=M0uO8X3_tEA",
			DurationMins: 15,
			Difficulty:   "High",
			Focus:        []string{"Cardio", "HIIT", "Fat Loss"},
			Description:  "High Intensity Interval Training to burn calories and improve cardiovascular health. No equipment needed.",
		},
		{
			ID:           "cg_abs_1",
			Title:        "10 MIN AB WORKOUT // No Equipment | Caroline Girvan",
			DisplayTitle: "10 Min Abs",
			Trainer:      "Caroline Girvan",
			URL:          "https://www.youtube.com/watch?v=HwrKuxq4fPA",
			DurationMins: 10,
			Difficulty:   "Intermediate",
			Focus:        []string{"Abs", "Core"},
			Description:  "Intense core session to strengthen and define the abdominals.",
		},
		{
			ID:           "cg_full_2",
			Title:        "45 MIN IRON SERIES FULL BODY WORKOUT | Caroline Girvan",
			DisplayTitle: "45 Min Iron Series Full Body",
			Trainer:      "Caroline Girvan",
			URL:          "https://www.youtube.com/watch?v=C3d2sVp4yWc",
			DurationMins: 45,
			Difficulty:   "Advanced",
			Focus:        []string{"Full Body", "Strength", "Hypertrophy"},
			Description:  "A longer, slower-paced strength session from the Iron Series. Focuses on muscle building and controlled movements.",
		},
		{
			ID:           "cg_stretch_1",
			Title:        "20 MIN FULL BODY STRETCH & COOL DOWN | Caroline Girvan",
			DisplayTitle: "20 Min Stretch & Cool Down",
			Trainer:      "Caroline Girvan",
			URL:          "https://www.youtube.com/watch?v=2L2lnxIcNmo",
			DurationMins: 20,
			Difficulty:   "Easy",
			Focus:        []string{"Recovery", "Flexibility", "Stretch"},
			Description:  "Essential recovery routine to improve flexibility and reduce muscle soreness.",
		},
	}
}
