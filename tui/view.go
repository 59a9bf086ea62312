package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255")).
		Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	runningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	doneStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	failedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	pendingStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	statusBarStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255"))
)

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	header := fmt.Sprintf(" Forge │ run %s │ elapsed %s ",
		m.runID, time.Since(m.startedAt).Round(time.Second))
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderPhases()))
	b.WriteString("\n")

	if len(m.items) > 0 {
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderItems()))
		b.WriteString("\n")
	}

	b.WriteString(statusBarStyle.Width(m.width).Render(m.statusLine()))
	return b.String()
}

func (m Model) renderPhases() string {
	var b strings.Builder
	b.WriteString("Phases\n")
	for _, row := range m.phases {
		var line string
		switch row.Status {
		case statusRunning:
			line = runningStyle.Render(fmt.Sprintf("  ▶ %d %-12s running", int(row.Phase), row.Phase))
		case statusDone:
			line = doneStyle.Render(fmt.Sprintf("  ✓ %d %-12s %s", int(row.Phase), row.Phase, row.Elapsed.Round(time.Millisecond)))
		case statusFailed:
			line = failedStyle.Render(fmt.Sprintf("  ✗ %d %-12s %s", int(row.Phase), row.Phase, row.Err))
		case statusSkipped:
			line = pendingStyle.Render(fmt.Sprintf("  - %d %-12s skipped (unknown)", int(row.Phase), row.Phase))
		default:
			line = pendingStyle.Render(fmt.Sprintf("  · %d %-12s pending", int(row.Phase), row.Phase))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderItems() string {
	var b strings.Builder
	b.WriteString("Work items\n")
	// Keep the most recent rows when the list outgrows the terminal.
	rows := m.items
	maxVisible := 10
	if len(rows) > maxVisible {
		rows = rows[len(rows)-maxVisible:]
	}
	for _, it := range rows {
		if it.Succeeded {
			b.WriteString(doneStyle.Render(fmt.Sprintf("  ✓ %-32s %d attempt(s)", it.ItemID, it.Attempts)))
		} else {
			b.WriteString(failedStyle.Render(fmt.Sprintf("  ✗ %-32s %s", it.ItemID, it.Err)))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) statusLine() string {
	if m.final != nil {
		if m.final.Success {
			return " run succeeded │ q: quit "
		}
		return fmt.Sprintf(" run failed at phase(s) %v │ q: quit ", m.final.PhasesFailed)
	}
	return " q: quit "
}
