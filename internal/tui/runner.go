package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// Work is a run that reports each committed batch through progress.
type Work func(ctx context.Context, progress func(pgstitch.BatchResult)) error

type progressMsg pgstitch.BatchResult

type doneMsg struct{ err error }

type loadModel struct {
	spinner spinner.Model
	keys    KeyMap
	title   string
	cancel  context.CancelFunc

	batches   int
	rows      int64
	source    string
	canceling bool
	done      bool
	err       error
}

func newLoadModel(title string, cancel context.CancelFunc) loadModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return loadModel{spinner: s, keys: DefaultKeyMap(), title: title, cancel: cancel}
}

func (m loadModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m loadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && !m.canceling {
			// The run stops at the next batch boundary and reports back with doneMsg.
			m.canceling = true
			m.cancel()
		}
		return m, nil
	case progressMsg:
		m.batches++
		m.rows += msg.Rows
		m.source = msg.Source
		return m, nil
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m loadModel) View() string {
	if m.done {
		if m.err != nil {
			return ErrorStyle.Render(fmt.Sprintf("%s %s failed after %d rows", SymbolCross, m.title, m.rows)) + "\n"
		}
		return SuccessStyle.Render(fmt.Sprintf("%s %s: %d rows in %d batches", SymbolCheck, m.title, m.rows, m.batches)) + "\n"
	}

	status := fmt.Sprintf("%d rows in %d batches", m.rows, m.batches)
	if m.source != "" {
		status += " " + SymbolBullet + " " + m.source
	}
	help := m.keys.HelpText()
	if m.canceling {
		help = "canceling..."
	}
	return fmt.Sprintf("%s %s  %s\n%s\n", m.spinner.View(), TitleStyle.Render(m.title), status, HelpStyle.Render(help))
}

// Track runs work while showing its progress on out. Interactive mode draws a
// spinner with running totals; otherwise one plain line is written per batch.
func Track(ctx context.Context, mode Mode, out io.Writer, title string, work Work) error {
	if mode != ModeInteractive {
		fmt.Fprintln(out, title)
		return work(ctx, func(b pgstitch.BatchResult) {
			fmt.Fprintf(out, "  %s batch %d: %d rows from %s (chunk %d)\n", SymbolCheck, b.Sequence, b.Rows, b.Source, b.Chunk)
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newLoadModel(title, cancel), tea.WithOutput(out))

	errCh := make(chan error, 1)
	go func() {
		err := work(ctx, func(b pgstitch.BatchResult) { p.Send(progressMsg(b)) })
		errCh <- err
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		return errors.Join(<-errCh, fmt.Errorf("progress display failed: %w", err))
	}
	return <-errCh
}
