package cmd

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/weft-dev/weft/internal/core"
)

// Color palette
var (
	colorPrimary = lipgloss.Color("#7C3AED") // Purple
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red
	colorInfo    = lipgloss.Color("#3B82F6") // Blue
	colorMuted   = lipgloss.Color("#9CA3AF") // Muted gray
)

type styleSet struct {
	title   lipgloss.Style
	task    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	running lipgloss.Style
}

// styles returns the output styles; plain when colors are disabled or
// stdout is not a terminal.
func styles() styleSet {
	if noColor || !term.IsTerminal(int(os.Stdout.Fd())) {
		plain := lipgloss.NewStyle()
		return styleSet{plain, plain, plain, plain, plain, plain, plain}
	}
	return styleSet{
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		task:    lipgloss.NewStyle().Foreground(colorInfo),
		muted:   lipgloss.NewStyle().Foreground(colorMuted),
		success: lipgloss.NewStyle().Foreground(colorSuccess),
		warning: lipgloss.NewStyle().Foreground(colorWarning),
		failure: lipgloss.NewStyle().Foreground(colorError),
		running: lipgloss.NewStyle().Foreground(colorInfo),
	}
}

func (s styleSet) taskStatus(status core.TaskStatus) string {
	switch status {
	case core.TaskStatusComplete:
		return s.success.Render("✓ " + string(status))
	case core.TaskStatusFailed:
		return s.failure.Render("✗ " + string(status))
	case core.TaskStatusWaitingForInput:
		return s.warning.Render("? " + string(status))
	case core.TaskStatusInProgress:
		return s.running.Render("● " + string(status))
	default:
		return s.muted.Render("· " + string(status))
	}
}

func (s styleSet) executionStatus(status core.ExecutionStatus) string {
	switch status {
	case core.ExecutionStatusCompleted:
		return s.success.Render(string(status))
	case core.ExecutionStatusFailed:
		return s.failure.Render(string(status))
	case core.ExecutionStatusWaitingForInput:
		return s.warning.Render(string(status))
	default:
		return s.running.Render(string(status))
	}
}

func (s styleSet) outcome(o core.Outcome) string {
	switch o {
	case core.OutcomeSucceeded:
		return s.success.Render(string(o))
	case core.OutcomeWaiting:
		return s.warning.Render(string(o))
	default:
		return s.failure.Render(string(o))
	}
}

// column pads text to width cells; styled text keeps its alignment.
func column(text string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(text)
}
