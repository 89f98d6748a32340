package model

import "time"

// EvaluationInput is everything a pipeline run needs.
type EvaluationInput struct {
	Container        string
	QuestionImage    string
	WorkingNoteImage string
	Region           *Region // nil means no crop step
	StudentID        string
	AssignmentID     string
	SessionID        string
}

// ErrorFound is one mistake the analyzer flagged in the working note.
type ErrorFound struct {
	Step        string `json:"step"`
	ErrorType   string `json:"error_type"`
	Description string `json:"description"`
	Correction  string `json:"correction,omitempty"`
	Hint        string `json:"hint,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

// QuestionAnalysis describes the printed problem.
type QuestionAnalysis struct {
	ProblemText            string `json:"problem_text"`
	ProblemType            string `json:"problem_type"`
	ExpectedSolutionMethod string `json:"expected_solution_method"`
	HasDiagram             bool   `json:"has_diagram"`
}

// WorkingNoteAnalysis describes the handwritten solution.
type WorkingNoteAnalysis struct {
	SolutionSteps          []string `json:"solution_steps"`
	MathematicalOperations []string `json:"mathematical_operations"`
	FinalAnswer            string   `json:"final_answer"`
	HasDiagram             bool     `json:"has_diagram"`
}

// StructuredAnalysis is the fully-parsed provider result.
type StructuredAnalysis struct {
	Question         QuestionAnalysis    `json:"question_analysis"`
	WorkingNote      WorkingNoteAnalysis `json:"working_note_analysis"`
	CorrectnessScore float64             `json:"correctness_score"`
	ErrorsFound      []ErrorFound        `json:"errors_found"`
	Feedback         string              `json:"feedback"`
}

// AnalysisOutcome is a tagged result: either a parsed analysis or the raw
// provider text with the reason it could not be parsed. Exactly one of
// Analysis / Unparseable is set.
type AnalysisOutcome struct {
	Provider    string
	Analysis    *StructuredAnalysis
	Unparseable *UnparseableAnalysis
}

type UnparseableAnalysis struct {
	Raw    string
	Reason string
}

func (o AnalysisOutcome) Parsed() bool { return o.Analysis != nil }

// FallbackAnalysis is substituted when a provider answered but its output
// could not be parsed; evaluation still completes with a neutral result.
func FallbackAnalysis() *StructuredAnalysis {
	return &StructuredAnalysis{
		CorrectnessScore: 0,
		ErrorsFound:      []ErrorFound{},
		Feedback:         "The analysis could not be structured; please retry the evaluation.",
	}
}

// EvaluationRecord is the persisted outcome of one completed run.
type EvaluationRecord struct {
	ID               string
	RunID            string
	StudentID        string
	AssignmentID     string
	QuestionImageRef string
	WorkingNoteRef   string
	CorrectnessScore float64
	ErrorsFound      []ErrorFound
	Feedback         string
	ProviderUsed     string
	CreatedAt        time.Time
}
