package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	spinnerDoneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	spinnerFailedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type taskDoneMsg struct {
	summary string
	err     error
}

// spinnerModel shows label until the task command reports back, then leaves
// the task's summary or error as the final frame.
type spinnerModel struct {
	spinner spinner.Model
	label   string
	task    tea.Cmd
	summary string
	err     error
	done    bool
}

func newSpinnerModel(label string, task tea.Cmd) spinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return spinnerModel{
		spinner: s,
		label:   label,
		task:    task,
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.task)
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case taskDoneMsg:
		m.done = true
		m.summary = msg.summary
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m spinnerModel) View() string {
	if m.done {
		switch {
		case m.err != nil:
			return spinnerFailedStyle.Render("✗ "+m.err.Error()) + "\n"
		case m.summary != "":
			return spinnerDoneStyle.Render("✓ "+m.summary) + "\n"
		default:
			return ""
		}
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

// runSpinner runs task while a spinner labelled label is drawn on output.
// The summary task returns is left on output as the final frame.
func runSpinner(ctx context.Context, output io.Writer, label string, task func(context.Context) (string, error)) error {
	taskCmd := func() tea.Msg {
		summary, err := task(ctx)
		return taskDoneMsg{summary: summary, err: err}
	}

	p := tea.NewProgram(
		newSpinnerModel(label, taskCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(spinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
