package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/statestore"
)

// Reporter is the progress sink for a pipeline run. The orchestrator is
// decoupled from any particular output medium: the CLI installs a console
// reporter, the dashboard an event-forwarding one, tests a recording one.
type Reporter interface {
	RunStarted(runID string, phases []int)
	PhaseStarted(phase domain.Phase)
	PhaseCompleted(phase domain.Phase, elapsed time.Duration)
	PhaseFailed(phase domain.Phase, err error)
	PhaseSkipped(number int)
	ItemFinished(outcome domain.Outcome)
	RunFinished(state *statestore.PhaseState)
}

// ConsoleReporter prints plain-text progress to a writer.
type ConsoleReporter struct {
	Out io.Writer
}

func (r *ConsoleReporter) RunStarted(runID string, phases []int) {
	fmt.Fprintf(r.Out, "Run %s: phases %v\n", runID, phases)
}

func (r *ConsoleReporter) PhaseStarted(phase domain.Phase) {
	fmt.Fprintf(r.Out, "\n=== Phase %d: %s ===\n", int(phase), phase)
}

func (r *ConsoleReporter) PhaseCompleted(phase domain.Phase, elapsed time.Duration) {
	fmt.Fprintf(r.Out, "Phase %s completed in %s\n", phase, elapsed.Round(time.Millisecond))
}

func (r *ConsoleReporter) PhaseFailed(phase domain.Phase, err error) {
	fmt.Fprintf(r.Out, "Phase %s failed: %v\n", phase, err)
}

func (r *ConsoleReporter) PhaseSkipped(number int) {
	fmt.Fprintf(r.Out, "Skipping unknown phase %d\n", number)
}

func (r *ConsoleReporter) ItemFinished(outcome domain.Outcome) {
	status := "ok"
	if !outcome.Succeeded {
		status = "FAILED"
	}
	fmt.Fprintf(r.Out, "  [%s] %s (%d attempt(s))\n", status, outcome.ItemID, outcome.Attempts)
}

func (r *ConsoleReporter) RunFinished(state *statestore.PhaseState) {
	if state.Success {
		fmt.Fprintf(r.Out, "\nRun succeeded: %d phase(s) completed\n", len(state.PhasesCompleted))
		return
	}
	fmt.Fprintf(r.Out, "\nRun failed: completed %v, failed %v\n", state.PhasesCompleted, state.PhasesFailed)
}

// RecordingReporter captures every event for assertions in tests.
type RecordingReporter struct {
	mu        sync.Mutex
	Started   []domain.Phase
	Completed []domain.Phase
	Failures  map[domain.Phase]error
	Skipped   []int
	Outcomes  []domain.Outcome
	Final     *statestore.PhaseState
}

// NewRecordingReporter creates an empty recorder.
func NewRecordingReporter() *RecordingReporter {
	return &RecordingReporter{Failures: make(map[domain.Phase]error)}
}

func (r *RecordingReporter) RunStarted(string, []int) {}

func (r *RecordingReporter) PhaseStarted(phase domain.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Started = append(r.Started, phase)
}

func (r *RecordingReporter) PhaseCompleted(phase domain.Phase, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Completed = append(r.Completed, phase)
}

func (r *RecordingReporter) PhaseFailed(phase domain.Phase, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures[phase] = err
}

func (r *RecordingReporter) PhaseSkipped(number int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = append(r.Skipped, number)
}

func (r *RecordingReporter) ItemFinished(outcome domain.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outcomes = append(r.Outcomes, outcome)
}

func (r *RecordingReporter) RunFinished(state *statestore.PhaseState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Final = state
}
