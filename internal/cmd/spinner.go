package cmd

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/vaxhacker/pgtemp/internal/pgserver"
)

type setupResult struct {
	srv *pgserver.Server
	err error
}

type setupDoneMsg setupResult

// setupModel shows a spinner while pgserver.New runs in a goroutine.
type setupModel struct {
	sp      spinner.Model
	results <-chan setupResult
	result  setupResult
	done    bool
	aborted bool
}

func newSetupModel(ch <-chan setupResult) setupModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styleHeader
	return setupModel{sp: sp, results: ch}
}

func (m setupModel) Init() tea.Cmd {
	return tea.Batch(m.sp.Tick, waitForSetup(m.results))
}

func waitForSetup(ch <-chan setupResult) tea.Cmd {
	return func() tea.Msg {
		return setupDoneMsg(<-ch)
	}
}

func (m setupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case setupDoneMsg:
		m.result = setupResult(msg)
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.aborted = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m setupModel) View() string {
	if m.done || m.aborted {
		return ""
	}
	return m.sp.View() + " starting temporary postgres..."
}

// startInstance provisions an instance, with a spinner standing in for
// the library's progress output on an interactive terminal. At
// verbosity >= 2 the raw command echo is wanted, so no spinner.
func startInstance(cfg pgserver.Config) (*pgserver.Server, error) {
	if !interactive() || cfg.Verbosity >= 2 {
		return pgserver.New(cfg)
	}

	// The spinner carries the progress; silence the library's own lines.
	cfg.Verbosity = 0

	ch := make(chan setupResult, 1)
	go func() {
		srv, err := pgserver.New(cfg)
		ch <- setupResult{srv: srv, err: err}
	}()

	out, err := tea.NewProgram(newSetupModel(ch)).Run()
	if err != nil {
		// Terminal trouble; fall back to waiting directly.
		r := <-ch
		return r.srv, r.err
	}

	m := out.(setupModel)
	if m.aborted {
		// Setup is still in flight and bounded by the retry budget. Wait
		// it out, then release whatever it acquired.
		r := <-ch
		if r.srv != nil {
			r.srv.Cleanup()
		}
		return nil, fmt.Errorf("interrupted")
	}
	return m.result.srv, m.result.err
}
