package ui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// TaskFunc is the work shown by RunTask.
type TaskFunc func(ctx context.Context) (string, error)

type taskDoneMsg struct {
	output string
	err    error
}

type tickMsg time.Time

// taskModel shows a spinner and the elapsed time until its work finishes.
type taskModel struct {
	title   string
	spinner spinner.Model
	start   time.Time
	now     time.Time
	run     tea.Cmd
	cancel  context.CancelFunc

	done   bool
	output string
	err    error
}

func newTaskModel(title string, run tea.Cmd, cancel context.CancelFunc) *taskModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	now := time.Now()
	return &taskModel{
		title:   title,
		spinner: s,
		start:   now,
		now:     now,
		run:     run,
		cancel:  cancel,
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *taskModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run, tick())
}

func (m *taskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			// The work observes the cancellation and reports back.
			m.cancel()
		}

	case taskDoneMsg:
		m.done = true
		m.output = msg.output
		m.err = msg.err
		return m, tea.Quit

	case tickMsg:
		m.now = time.Time(msg)
		if !m.done {
			return m, tick()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *taskModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s %s\n",
		m.spinner.View(),
		m.title,
		MutedStyle.Render(FormatDuration(m.now.Sub(m.start))),
	)
}

// RunTask runs fn while a spinner program is shown. Esc or ctrl+c cancels
// the context passed to fn.
func RunTask(ctx context.Context, title string, fn TaskFunc) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := func() tea.Msg {
		out, err := fn(ctx)
		return taskDoneMsg{output: out, err: err}
	}

	model := newTaskModel(title, run, cancel)
	program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(os.Stdout))

	final, err := program.Run()
	if m, ok := final.(*taskModel); ok && m.done {
		return m.output, m.err
	}

	// Interrupted or killed before the work reported. The work sees the
	// cancellation and winds down on its own.
	cancelled := ctx.Err() != nil
	cancel()
	if err != nil && !cancelled {
		return "", fmt.Errorf("task display: %w", err)
	}
	return "", context.Canceled
}
