// File: internal/infra/adapters/vision/prompt.go
package vision

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"math-eval-service/internal/domain/model"
)

// analysisPrompt asks the provider for the exact JSON shape the service
// parses. Providers that answer with prose instead still produce a usable
// outcome via the Unparseable branch.
const analysisPrompt = `Analyze these two images:

1. QUESTION IMAGE: A printed mathematical problem
2. WORKING NOTE IMAGE: Student's handwritten solution

Provide a comprehensive analysis in the following JSON format and nothing else:
{
    "question_analysis": {
        "problem_text": "Extracted problem text",
        "problem_type": "Type of mathematical problem",
        "expected_solution_method": "Expected approach to solve",
        "has_diagram": false
    },
    "working_note_analysis": {
        "solution_steps": ["Step 1", "Step 2"],
        "mathematical_operations": ["Operation 1", "Operation 2"],
        "final_answer": "Student's final answer",
        "has_diagram": false
    },
    "correctness_score": 85.5,
    "errors_found": [
        {
            "step": "Step number or description",
            "error_type": "Type of error",
            "description": "Description of the error",
            "correction": "How to fix it",
            "hint": "Hint for the student",
            "severity": "high/medium/low"
        }
    ],
    "feedback": "Detailed feedback for the student"
}`

// parseOutcome turns raw provider text into a tagged outcome. A response
// that is not valid JSON for the expected shape is NOT an error: the
// pipeline substitutes a fallback analysis and the run completes.
func parseOutcome(provider, raw string) model.AnalysisOutcome {
	text := stripCodeFence(raw)
	var analysis model.StructuredAnalysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return model.AnalysisOutcome{
			Provider:    provider,
			Unparseable: &model.UnparseableAnalysis{Raw: raw, Reason: err.Error()},
		}
	}
	if analysis.CorrectnessScore < 0 || analysis.CorrectnessScore > 100 {
		analysis.CorrectnessScore = 0
	}
	if analysis.ErrorsFound == nil {
		analysis.ErrorsFound = []model.ErrorFound{}
	}
	return model.AnalysisOutcome{Provider: provider, Analysis: &analysis}
}

// stripCodeFence removes a surrounding ```json fence when the provider
// wraps its answer despite being asked not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func encodeImageBase64(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func readImage(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return b, nil
}
