package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/statestore"
)

// phaseStatus is the display state of one pipeline phase.
type phaseStatus int

const (
	statusPending phaseStatus = iota
	statusRunning
	statusDone
	statusFailed
	statusSkipped
)

// phaseRow is one line in the phase table.
type phaseRow struct {
	Phase   domain.Phase
	Status  phaseStatus
	Elapsed time.Duration
	Err     string
}

// itemRow is one line in the work item table.
type itemRow struct {
	ItemID    string
	Succeeded bool
	Attempts  int
	Err       string
}

// Model is the dashboard shown while a pipeline run executes.
type Model struct {
	runID  string
	phases []phaseRow
	items  []itemRow

	final    *statestore.PhaseState
	finished bool

	width  int
	height int

	startedAt time.Time
}

// ModelConfig seeds the dashboard before the run starts.
type ModelConfig struct {
	RunID  string
	Phases []int
}

// NewModel creates the initial dashboard model.
func NewModel(cfg ModelConfig) Model {
	rows := make([]phaseRow, 0, len(cfg.Phases))
	for _, n := range cfg.Phases {
		phase := domain.Phase(n)
		status := statusPending
		if !phase.Valid() {
			status = statusSkipped
		}
		rows = append(rows, phaseRow{Phase: phase, Status: status})
	}
	return Model{
		runID:     cfg.RunID,
		phases:    rows,
		startedAt: time.Now(),
	}
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m *Model) row(phase domain.Phase) *phaseRow {
	for i := range m.phases {
		if m.phases[i].Phase == phase {
			return &m.phases[i]
		}
	}
	return nil
}
