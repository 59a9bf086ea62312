package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/statestore"
)

// Reporter forwards pipeline progress into a running bubbletea program.
// It satisfies the pipeline's Reporter interface without the pipeline
// knowing anything about terminals.
type Reporter struct {
	program *tea.Program
}

// NewReporter wraps a program.
func NewReporter(p *tea.Program) *Reporter {
	return &Reporter{program: p}
}

func (r *Reporter) RunStarted(runID string, phases []int) {
	r.program.Send(RunStartedMsg{RunID: runID, Phases: phases})
}

func (r *Reporter) PhaseStarted(phase domain.Phase) {
	r.program.Send(PhaseStartedMsg{Phase: phase})
}

func (r *Reporter) PhaseCompleted(phase domain.Phase, elapsed time.Duration) {
	r.program.Send(PhaseCompletedMsg{Phase: phase, Elapsed: elapsed})
}

func (r *Reporter) PhaseFailed(phase domain.Phase, err error) {
	r.program.Send(PhaseFailedMsg{Phase: phase, Err: err})
}

func (r *Reporter) PhaseSkipped(int) {}

func (r *Reporter) ItemFinished(outcome domain.Outcome) {
	r.program.Send(ItemFinishedMsg{Outcome: outcome})
}

func (r *Reporter) RunFinished(state *statestore.PhaseState) {
	r.program.Send(RunFinishedMsg{State: state})
}
