// File: internal/infra/adapters/vision/gemini_adapter.go
package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"math-eval-service/internal/domain/model"
	"math-eval-service/internal/domain/ports/adapter"
	"math-eval-service/internal/infra/metrics"
)

var _ adapter.VisionAnalyzer = (*GeminiAnalyzer)(nil)

// GeminiAnalyzer analyzes image pairs with a Gemini multimodal model via
// the official SDK, sending the images as inline blobs.
type GeminiAnalyzer struct {
	client *genai.Client
	model  string
}

func NewGeminiAnalyzer(ctx context.Context, apiKey, baseURL, model string) (*GeminiAnalyzer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAnalyzer{client: c, model: model}, nil
}

func (g *GeminiAnalyzer) Name() string { return "gemini" }

func (g *GeminiAnalyzer) Analyze(ctx context.Context, questionPath, workingNotePath string) (model.AnalysisOutcome, error) {
	questionBytes, err := readImage(questionPath)
	if err != nil {
		return model.AnalysisOutcome{}, err
	}
	workingBytes, err := readImage(workingNotePath)
	if err != nil {
		return model.AnalysisOutcome{}, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(analysisPrompt),
			genai.NewPartFromBytes(questionBytes, "image/jpeg"),
			genai.NewPartFromBytes(workingBytes, "image/jpeg"),
		}, genai.RoleUser),
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: 2000,
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		metrics.ObserveVisionCall(g.Name(), g.model, 0, latency, false)
		return model.AnalysisOutcome{}, fmt.Errorf("gemini generate content: %w", err)
	}

	promptTokens := 0
	if resp.UsageMetadata != nil {
		promptTokens = int(resp.UsageMetadata.PromptTokenCount)
	}
	metrics.ObserveVisionCall(g.Name(), g.model, promptTokens, latency, true)

	text := resp.Text()
	if text == "" {
		return model.AnalysisOutcome{}, errors.New("gemini: empty response")
	}

	outcome := parseOutcome(g.Name(), text)
	if !outcome.Parsed() {
		metrics.IncVisionUnparseable(g.Name())
	}
	return outcome, nil
}
