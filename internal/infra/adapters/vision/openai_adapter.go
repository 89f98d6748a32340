// File: internal/infra/adapters/vision/openai_adapter.go
package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"math-eval-service/internal/domain/model"
	"math-eval-service/internal/domain/ports/adapter"
	"math-eval-service/internal/infra/metrics"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.VisionAnalyzer = (*OpenAIAnalyzer)(nil)

// OpenAIAnalyzer analyzes image pairs with an OpenAI vision-capable chat
// model. Images ride along as base64 data URLs.
type OpenAIAnalyzer struct {
	client  openai.Client
	model   string
	encoder *tiktoken.Tiktoken
}

func NewOpenAIAnalyzer(apiKey, model string) (*OpenAIAnalyzer, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o"
	}
	// Token estimate only; counting failures never block the adapter.
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &OpenAIAnalyzer{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		encoder: enc,
	}, nil
}

func (a *OpenAIAnalyzer) Name() string { return "openai" }

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, questionPath, workingNotePath string) (model.AnalysisOutcome, error) {
	questionB64, err := encodeImageBase64(questionPath)
	if err != nil {
		return model.AnalysisOutcome{}, err
	}
	workingB64, err := encodeImageBase64(workingNotePath)
	if err != nil {
		return model.AnalysisOutcome{}, err
	}

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(analysisPrompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:image/jpeg;base64," + questionB64,
		}),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:image/jpeg;base64," + workingB64,
		}),
	}

	start := time.Now()
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(a.model),
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		MaxTokens: openai.Int(2000),
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		metrics.ObserveVisionCall(a.Name(), a.model, a.estimateTokens(analysisPrompt), latency, false)
		return model.AnalysisOutcome{}, fmt.Errorf("openai chat completion: %w", err)
	}

	promptTokens := int(resp.Usage.PromptTokens)
	if promptTokens == 0 {
		promptTokens = a.estimateTokens(analysisPrompt)
	}
	metrics.ObserveVisionCall(a.Name(), a.model, promptTokens, latency, true)

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return model.AnalysisOutcome{}, errors.New("openai: no choice content")
	}

	outcome := parseOutcome(a.Name(), resp.Choices[0].Message.Content)
	if !outcome.Parsed() {
		metrics.IncVisionUnparseable(a.Name())
	}
	return outcome, nil
}

func (a *OpenAIAnalyzer) estimateTokens(text string) int {
	if a.encoder == nil {
		return 0
	}
	return len(a.encoder.Encode(text, nil, nil))
}
