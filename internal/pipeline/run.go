// File: internal/pipeline/run.go
package pipeline

import (
	"math/rand"
	"sync"
	"time"

	"math-eval-service/internal/domain"

	"github.com/oklog/ulid/v2"
)

type RunStatus string

const (
	RunStatusStarted   RunStatus = "started"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Progress is a point-in-time view of a run, safe to read while the run
// is still executing.
type Progress struct {
	RunID          string   `json:"run_id"`
	Status         string   `json:"status"`
	StepsCompleted []string `json:"steps_completed"`
	StepsRemaining []string `json:"steps_remaining"`
	Percent        float64  `json:"progress_percent"`
	FailedStep     string   `json:"failed_step,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// releaseFunc frees one registered temporary resource.
type releaseFunc func() error

type resource struct {
	name    string
	release releaseFunc
}

// Run tracks one pipeline execution: its status machine, the ordered step
// ledger, and the temporary resources compensation must release. All
// mutators are guarded; external callers only ever see it through
// Progress() and RunResult.
type Run struct {
	mu sync.Mutex

	id          string
	status      RunStatus
	declared    []string
	completed   []string
	currentStep string
	failedStep  string
	err         error
	resources   []resource
	compensated bool
	startedAt   time.Time
	completedAt time.Time
}

func newRun(stepNames []string) *Run {
	now := time.Now()
	id := ulid.MustNew(ulid.Timestamp(now), rand.New(rand.NewSource(now.UnixNano()))).String()
	return &Run{
		id:        id,
		status:    RunStatusStarted,
		declared:  stepNames,
		startedAt: now,
	}
}

func (r *Run) ID() string { return r.id }

func (r *Run) markRunning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == RunStatusStarted {
		r.status = RunStatusRunning
	}
}

// markCompleted transitions to the terminal completed state. Terminal
// states are sticky; a second transition is refused.
func (r *Run) markCompleted() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminalLocked() {
		return domain.ErrRunTerminal
	}
	r.status = RunStatusCompleted
	r.completedAt = time.Now()
	return nil
}

func (r *Run) markFailed(step string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminalLocked() {
		return domain.ErrRunTerminal
	}
	r.status = RunStatusFailed
	r.failedStep = step
	r.err = err
	r.completedAt = time.Now()
	return nil
}

func (r *Run) terminalLocked() bool {
	return r.status == RunStatusCompleted || r.status == RunStatusFailed
}

func (r *Run) beginStep(name string) {
	r.mu.Lock()
	r.currentStep = name
	r.mu.Unlock()
}

func (r *Run) finishStep(name string, skipped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if skipped {
		name = name + " (skipped)"
	}
	r.completed = append(r.completed, name)
	r.currentStep = ""
}

// registerResource records a temporary resource for compensation. Release
// order is reverse of registration.
func (r *Run) registerResource(name string, release releaseFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources = append(r.resources, resource{name: name, release: release})
}

// takeResources hands out the resource list exactly once; later calls get
// nothing, which is what makes double compensation a no-op.
func (r *Run) takeResources() []resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.compensated {
		return nil
	}
	r.compensated = true
	out := r.resources
	r.resources = nil
	return out
}

// Progress reports steps completed/remaining and a derived percentage.
// Callable at any point, including mid-failure.
func (r *Run) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()

	completed := make([]string, len(r.completed))
	copy(completed, r.completed)

	remaining := make([]string, 0, len(r.declared))
	if n := len(r.completed); n < len(r.declared) {
		for _, name := range r.declared[n:] {
			remaining = append(remaining, name)
		}
	}

	var pct float64
	if len(r.declared) > 0 {
		pct = float64(len(r.completed)) / float64(len(r.declared)) * 100
	}

	p := Progress{
		RunID:          r.id,
		Status:         string(r.status),
		StepsCompleted: completed,
		StepsRemaining: remaining,
		Percent:        pct,
		FailedStep:     r.failedStep,
	}
	if r.err != nil {
		p.Error = r.err.Error()
	}
	return p
}

func (r *Run) duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := r.completedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.startedAt)
}
