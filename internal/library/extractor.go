package library

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fitness-coach/internal/llm"

	"github.com/PuerkitoBio/goquery"
)

// Extractor fetches workout pages and turns them into library entries.
type Extractor struct {
	textGen llm.TextGenerator
}

// NewExtractor creates a new Extractor instance.
func NewExtractor(textGen llm.TextGenerator) *Extractor {
	return &Extractor{textGen: textGen}
}

// ExtractURL fetches the URL, extracts the workout using AI, and returns a
// Workout ready to be saved into the library.
func (e *Extractor) ExtractURL(ctx context.Context, url string) (*Workout, error) {
	// 1. Fetch and Clean HTML
	content, err := e.fetchAndCleanHTML(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}

	// 2. Extract Data via the text model
	prompt := fmt.Sprintf(`
You are a workout extraction expert. Extract the workout details from the following page content.
Return the result strictly as a JSON object with this structure:
{
  "id": "short_snake_case_id",
  "title": "Full workout title",
  "display_title": "Short title for UI cards",
  "trainer": "Trainer or channel name",
  "duration_mins": 20,
  "difficulty": "Beginner/Intermediate/Advanced",
  "focus": ["Full Body", "HIIT", ...],
  "exercises": ["exercise 1", "exercise 2", ...],
  "description": "One or two sentences on what this workout is good for"
}
Use only these focus tags where they apply: Full Body, Upper Body, Legs, Glutes, Abs, Core,
Arms, Shoulders, Cardio, HIIT, Fat Loss, Strength, Hypertrophy, Endurance, Dumbbells,
No Equipment, Recovery, Stretch, Flexibility.
Do not include any other text or formatting in your response.

Page Content:
%s
`, content)

	resp, err := e.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("ai extraction failed: %w", err)
	}

	var workout Workout
	if err := json.Unmarshal([]byte(resp.Content), &workout); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w. Response: %s", err, resp.Content)
	}
	workout.URL = url

	if workout.ID == "" || workout.Title == "" {
		return nil, fmt.Errorf("extracted workout from %s is missing id or title", url)
	}
	return &workout, nil
}

func (e *Extractor) fetchAndCleanHTML(url string) (string, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	// Remove noise to save LLM tokens
	doc.Find("script, style, nav, footer, iframe, ads, .ads, #ads").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	return doc.Find("body").Text(), nil
}
