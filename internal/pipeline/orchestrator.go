// File: internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"time"

	"math-eval-service/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// StepContext is what a step sees while executing: the prior step's output
// and a hook to register temporary resources for compensation.
type StepContext struct {
	Input any
	run   *Run
}

// RegisterCleanup records a temporary resource (file, handle) the run must
// release during compensation, whatever the outcome.
func (sc *StepContext) RegisterCleanup(name string, release func() error) {
	sc.run.registerResource(name, release)
}

// RunID identifies the run this step belongs to.
func (sc *StepContext) RunID() string { return sc.run.ID() }

// Step is one named, independently retryable stage. Its function consumes
// the prior step's output and produces the next; Condition, when set,
// decides whether the step runs at all (a skipped step passes its input
// through untouched).
type Step struct {
	Name      string
	Policy    Policy
	Condition func(input any) bool
	Do        func(ctx context.Context, sc *StepContext) (any, error)
}

// RunResult is the single value callers get back from Run.
type RunResult struct {
	RunID       string
	Status      RunStatus
	Output      any
	FailedStep  string
	Err         error
	StartedAt   time.Time
	CompletedAt time.Time
	Progress    Progress
}

// Orchestrator drives a fixed, partly-conditional chain of retryable
// steps and guarantees the compensation phase runs exactly once on every
// exit path.
type Orchestrator struct {
	exec       *Executor
	runTimeout time.Duration
	log        *zerolog.Logger
}

func NewOrchestrator(exec *Executor, runTimeout time.Duration, log *zerolog.Logger) *Orchestrator {
	return &Orchestrator{exec: exec, runTimeout: runTimeout, log: log}
}

// Run executes the steps strictly in declared order, feeding each step the
// prior step's output. The first exhausted or non-retryable step error
// fails the run; later steps do not execute. Compensation always runs
// before Run returns, including on cancellation, and uses a detached
// context so a cancelled caller cannot starve cleanup.
func (o *Orchestrator) Run(ctx context.Context, steps []Step, input any) (*RunResult, error) {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	run := newRun(names)
	log := o.log.With().Str("run_id", run.ID()).Logger()

	if o.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.runTimeout)
		defer cancel()
	}

	defer o.compensate(run, &log)

	log.Info().Int("steps", len(steps)).Msg("pipeline run started")
	run.markRunning()

	current := input
	for _, step := range steps {
		if step.Condition != nil && !step.Condition(current) {
			run.finishStep(step.Name, true)
			log.Debug().Str("step", step.Name).Msg("step skipped")
			continue
		}

		run.beginStep(step.Name)
		var out any
		err := o.exec.Execute(ctx, step.Name, func(ctx context.Context) error {
			v, err := step.Do(ctx, &StepContext{Input: current, run: run})
			if err != nil {
				return err
			}
			out = v
			return nil
		}, step.Policy)
		if err != nil {
			_ = run.markFailed(step.Name, err)
			metrics.IncRun(string(RunStatusFailed), run.duration().Milliseconds())
			log.Error().Err(err).Str("step", step.Name).Msg("pipeline run failed")
			return o.result(run, current), err
		}

		run.finishStep(step.Name, false)
		current = out
	}

	_ = run.markCompleted()
	metrics.IncRun(string(RunStatusCompleted), run.duration().Milliseconds())
	log.Info().Dur("duration", run.duration()).Msg("pipeline run completed")
	return o.result(run, current), nil
}

func (o *Orchestrator) result(run *Run, output any) *RunResult {
	p := run.Progress()
	res := &RunResult{
		RunID:       run.ID(),
		Status:      RunStatus(p.Status),
		Output:      output,
		FailedStep:  p.FailedStep,
		StartedAt:   run.startedAt,
		CompletedAt: run.completedAt,
		Progress:    p,
	}
	res.Err = run.err
	return res
}

// compensate releases every registered resource exactly once, in reverse
// registration order. A release failure is logged and does not stop the
// remaining releases.
func (o *Orchestrator) compensate(run *Run, log *zerolog.Logger) {
	resources := run.takeResources()
	for i := len(resources) - 1; i >= 0; i-- {
		r := resources[i]
		if err := r.release(); err != nil {
			metrics.IncResourceRelease("failed")
			log.Warn().Err(err).Str("resource", r.name).Msg("resource release failed")
			continue
		}
		metrics.IncResourceRelease("released")
		log.Debug().Str("resource", r.name).Msg("resource released")
	}
}
