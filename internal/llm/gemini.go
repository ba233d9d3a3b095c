package llm

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fitness-coach/internal/scan"
	"fitness-coach/internal/shared"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

//go:embed vision_prompt.md
var visionPrompt string

//go:embed recommend_prompt.md
var recommendPrompt string

const (
	textModelName  = "gemini-2.0-flash"
	imageModelName = "gemini-2.5-flash-image"
)

// physiqueDescriptions map each goal to the target physique the image model
// should render.
var physiqueDescriptions = map[scan.Goal]string{
	scan.GoalLean:     "a Lean & Toned physique. Target 8-10% body fat. Visible six-pack abs, defined oblique muscles, tight waist. No excess fat. The look of a calisthenics athlete or boxer. Sharp definition.",
	scan.GoalAthletic: "a Fit & Athletic physique. Broad shoulders, V-shaped torso, flat stomach with visible muscle tone. Well-developed chest and arms. The look of a competitive swimmer or decathlete. Healthy, capable, and strong, but not overly bulky.",
	scan.GoalMuscle:   "a Muscular & Powerful physique. Significant natural muscle mass. Large chest, thick arms, and strong legs. Target 12-15% body fat (visible abs but not shredded). The look of a superhero actor or rugby player. Impressive size but realistic proportions.",
}

// GeminiClient implements the collaborator interfaces on top of the Gemini API.
type GeminiClient struct {
	client     *genai.Client
	textModel  *genai.GenerativeModel
	jsonModel  *genai.GenerativeModel
	imageModel *genai.GenerativeModel
}

// NewGeminiClient creates a new Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	textModel := client.GenerativeModel(textModelName)

	jsonModel := client.GenerativeModel(textModelName)
	jsonModel.ResponseMIMEType = "application/json"

	imageModel := client.GenerativeModel(imageModelName)

	return &GeminiClient{
		client:     client,
		textModel:  textModel,
		jsonModel:  jsonModel,
		imageModel: imageModel,
	}, nil
}

// GenerateContent sends a prompt to the text model and returns the generated text.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	resp, err := c.textModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := firstText(resp)
	if err != nil {
		return ContentResponse{}, err
	}
	return ContentResponse{Content: text, Usage: usageOf(resp, textModelName)}, nil
}

// AnalyzeBody runs the vision analysis over a body photo. Invoked once per
// call; retrying is the caller's decision.
func (c *GeminiClient) AnalyzeBody(ctx context.Context, image []byte, mimeType string) (scan.Analysis, shared.AgentMeta, error) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: "Vision"}

	resp, err := c.jsonModel.GenerateContent(ctx,
		genai.ImageData(imageFormat(mimeType), image),
		genai.Text(visionPrompt),
	)
	if err != nil {
		return scan.Analysis{}, meta, fmt.Errorf("vision call failed: %w", err)
	}
	meta.Usage = usageOf(resp, textModelName)
	meta.Latency = time.Since(start)

	text, err := firstText(resp)
	if err != nil {
		return scan.Analysis{}, meta, err
	}

	var analysis scan.Analysis
	if err := json.Unmarshal([]byte(stripFences(text)), &analysis); err != nil {
		return scan.Analysis{}, meta, fmt.Errorf("failed to parse analysis JSON: %w. Response: %s", err, text)
	}
	return analysis, meta, nil
}

// GeneratePhysique renders the user's photo transformed towards one goal.
func (c *GeminiClient) GeneratePhysique(ctx context.Context, image []byte, mimeType string, goal scan.Goal) ([]byte, shared.AgentMeta, error) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: "ImageGen"}

	desc, ok := physiqueDescriptions[goal]
	if !ok {
		return nil, meta, fmt.Errorf("%w: %q", scan.ErrUnknownGoal, goal)
	}

	prompt := fmt.Sprintf(
		"Transform the person in the reference photo to have %s "+
			"Maintain the person's face, skin tone, and head to preserve identity, but completely modify the body shape to match the target physique. "+
			"Keep the same standing pose, framing, lighting, and background. "+
			"Generate a photorealistic, high-quality, 8k image. Ensure the body looks natural and not cartoonish.",
		desc,
	)

	resp, err := c.imageModel.GenerateContent(ctx,
		genai.ImageData(imageFormat(mimeType), image),
		genai.Text(prompt),
	)
	if err != nil {
		return nil, meta, fmt.Errorf("image generation failed for goal %s: %w", goal, err)
	}
	meta.Usage = usageOf(resp, imageModelName)
	meta.Latency = time.Since(start)

	img, err := firstImage(resp)
	if err != nil {
		return nil, meta, err
	}
	return img, meta, nil
}

// RecommendPath compares the original photo against the three generated
// goal images and returns a structured recommendation.
func (c *GeminiClient) RecommendPath(ctx context.Context, input RecommendationInput) (PathRecommendation, shared.AgentMeta, error) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: "Recommender"}

	format := imageFormat(input.MimeType)
	resp, err := c.jsonModel.GenerateContent(ctx,
		genai.Text(recommendPrompt),
		genai.Text("Original Image:"),
		genai.ImageData(format, input.Original),
		genai.Text("Lean Goal:"),
		genai.ImageData(format, input.Lean),
		genai.Text("Athletic Goal:"),
		genai.ImageData(format, input.Athletic),
		genai.Text("Muscle Goal:"),
		genai.ImageData(format, input.Muscle),
	)
	if err != nil {
		return PathRecommendation{}, meta, fmt.Errorf("recommendation call failed: %w", err)
	}
	meta.Usage = usageOf(resp, textModelName)
	meta.Latency = time.Since(start)

	text, err := firstText(resp)
	if err != nil {
		return PathRecommendation{}, meta, err
	}

	var rec PathRecommendation
	if err := json.Unmarshal([]byte(stripFences(text)), &rec); err != nil {
		return PathRecommendation{}, meta, fmt.Errorf("failed to parse recommendation JSON: %w. Response: %s", err, text)
	}
	return rec, meta, nil
}

// Close closes the underlying Gemini client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content generated")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			return string(text), nil
		}
	}
	return "", fmt.Errorf("generated content is not text")
}

func firstImage(resp *genai.GenerateContentResponse) ([]byte, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no content generated")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if blob, ok := part.(genai.Blob); ok {
			return blob.Data, nil
		}
	}
	return nil, fmt.Errorf("generated content contains no image")
}

func usageOf(resp *genai.GenerateContentResponse, model string) shared.TokenUsage {
	usage := shared.TokenUsage{Model: model}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return usage
}

// imageFormat converts a mime type like "image/jpeg" to the bare format
// string genai.ImageData expects.
func imageFormat(mimeType string) string {
	if mimeType == "" {
		return "jpeg"
	}
	return strings.TrimPrefix(mimeType, "image/")
}

// stripFences removes markdown code fences some model responses wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
