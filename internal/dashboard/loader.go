package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/skillradar/internal/pipeline"
)

const prepareTimeout = 5 * time.Minute

// PrepareFunc computes the snapshot the dashboard shows.
type PrepareFunc func(ctx context.Context) (*pipeline.Snapshot, error)

type preparedMsg struct {
	snap *pipeline.Snapshot
	err  error
}

type loaderModel struct {
	label  string
	spin   spinner.Model
	run    tea.Cmd
	cancel context.CancelFunc

	snap *pipeline.Snapshot
	err  error
	done bool
}

func newLoaderModel(label string, prepare PrepareFunc) loaderModel {
	ctx, cancel := context.WithTimeout(context.Background(), prepareTimeout)
	return loaderModel{
		label:  label,
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(colorAccent))),
		cancel: cancel,
		run: func() tea.Msg {
			snap, err := prepare(ctx)
			return preparedMsg{snap: snap, err: err}
		},
	}
}

func (m loaderModel) Init() tea.Cmd {
	return tea.Batch(m.run, m.spin.Tick)
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case preparedMsg:
		m.cancel()
		m.snap, m.err, m.done = msg.snap, msg.err, true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			m.err, m.done = context.Canceled, true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		return ""
	}
	return m.spin.View() + " " + m.label + "...\n"
}

// RunLoader shows a spinner while prepare runs and returns its result.
// ctrl+c cancels prepare's context and returns context.Canceled. It renders
// inline (no alt screen).
func RunLoader(label string, prepare PrepareFunc) (*pipeline.Snapshot, error) {
	result, err := tea.NewProgram(newLoaderModel(label, prepare)).Run()
	if err != nil {
		return nil, err
	}
	final := result.(loaderModel)
	return final.snap, final.err
}
