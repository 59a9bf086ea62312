package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/statestore"
)

// Messages sent into the program by the pipeline reporter.

type RunStartedMsg struct {
	RunID  string
	Phases []int
}

type PhaseStartedMsg struct {
	Phase domain.Phase
}

type PhaseCompletedMsg struct {
	Phase   domain.Phase
	Elapsed time.Duration
}

type PhaseFailedMsg struct {
	Phase domain.Phase
	Err   error
}

type ItemFinishedMsg struct {
	Outcome domain.Outcome
}

type RunFinishedMsg struct {
	State *statestore.PhaseState
}

// TickMsg drives the elapsed-time display.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		if m.finished {
			return m, nil
		}
		return m, tickCmd()

	case RunStartedMsg:
		m.runID = msg.RunID
		if len(m.phases) == 0 {
			seeded := NewModel(ModelConfig{RunID: msg.RunID, Phases: msg.Phases})
			m.phases = seeded.phases
		}

	case PhaseStartedMsg:
		if row := m.row(msg.Phase); row != nil {
			row.Status = statusRunning
		}

	case PhaseCompletedMsg:
		if row := m.row(msg.Phase); row != nil {
			row.Status = statusDone
			row.Elapsed = msg.Elapsed
		}

	case PhaseFailedMsg:
		if row := m.row(msg.Phase); row != nil {
			row.Status = statusFailed
			row.Err = msg.Err.Error()
		}

	case ItemFinishedMsg:
		m.items = append(m.items, itemRow{
			ItemID:    msg.Outcome.ItemID,
			Succeeded: msg.Outcome.Succeeded,
			Attempts:  msg.Outcome.Attempts,
			Err:       msg.Outcome.Error,
		})

	case RunFinishedMsg:
		m.final = msg.State
		m.finished = true
	}

	return m, nil
}
