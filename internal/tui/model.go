package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sitetester/internal/config"
	"sitetester/internal/runner"
	"sitetester/internal/stats"
	"sitetester/internal/tui/live"
	"sitetester/internal/tui/result"
	"sitetester/internal/tui/styles"
)

const tickInterval = 200 * time.Millisecond

type tickMsg time.Time

type runDoneMsg struct {
	res runner.Result
	err error
}

// Model drives one run: the live dashboard while requests are outstanding,
// then the result view until the user quits.
type Model struct {
	Cfg    config.Config
	Runner *runner.Runner
	Live   *stats.Live

	Dashboard live.Model
	Summary   result.Model

	// Set once the run has finished.
	Done   bool
	Result runner.Result
	Report *stats.Report
	RunErr error

	ctx    context.Context
	cancel context.CancelFunc
	width  int
	height int
}

func NewModel(ctx context.Context, cfg config.Config) Model {
	tracker := stats.NewLive()
	ctx, cancel := context.WithCancel(ctx)
	return Model{
		Cfg:       cfg,
		Runner:    runner.NewRunner(cfg, runner.WithObserver(tracker)),
		Live:      tracker,
		Dashboard: live.NewModel(cfg.RunDuration()),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.runCmd(), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		var cmd tea.Cmd
		m.Dashboard, cmd = m.Dashboard.Update(msg)
		m.Summary, _ = m.Summary.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.Done {
				return m, tea.Quit
			}
			// Stop scheduling; the run reports back through runDoneMsg.
			m.cancel()
			return m, nil
		}

	case tickMsg:
		if m.Done {
			return m, nil
		}
		var cmd tea.Cmd
		m.Dashboard, cmd = m.Dashboard.Update(m.Live.Snapshot(m.Runner.Inflight()))
		return m, tea.Batch(cmd, tickCmd())

	case runDoneMsg:
		m.Done = true
		m.Result = msg.res
		m.RunErr = msg.err
		m.cancel()
		if len(msg.res.Records) > 0 {
			rep, err := stats.Aggregate(msg.res)
			if err != nil && m.RunErr == nil {
				m.RunErr = err
			}
			m.Report = rep
		}
		m.Summary = result.NewModel(m.Report, m.RunErr)
		m.Summary, _ = m.Summary.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
		return m, nil

	default:
		var cmd tea.Cmd
		m.Dashboard, cmd = m.Dashboard.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.Done {
		return m.Summary.View()
	}

	s := strings.Builder{}
	s.WriteString(styles.Title.Render("🚀 sitetester"))
	s.WriteString("\n")

	target, err := m.Cfg.RequestURL()
	if err != nil {
		target = m.Cfg.URL
	}
	s.WriteString(fmt.Sprintf("URL: %s\n", target))
	s.WriteString(styles.Subtle.Render(fmt.Sprintf(
		"RPS: %d | Duration: %ds | Timeout: %s | Elapsed: %s",
		m.Cfg.RPS, m.Cfg.Duration, m.Cfg.Timeout,
		time.Since(m.Dashboard.StartTime).Round(time.Second),
	)))
	s.WriteString("\n\n")
	s.WriteString(m.Dashboard.View())
	s.WriteString("\n")
	s.WriteString(styles.RenderKey("q", "stop run"))

	return s.String()
}

func (m Model) runCmd() tea.Cmd {
	r, ctx := m.Runner, m.ctx
	return func() tea.Msg {
		res, err := r.Run(ctx)
		return runDoneMsg{res: res, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run shows the TUI for a single load test and returns once the user
// leaves the result view.
func Run(ctx context.Context, cfg config.Config) (Model, error) {
	final, err := tea.NewProgram(NewModel(ctx, cfg), tea.WithAltScreen()).Run()
	if err != nil {
		return Model{}, err
	}
	m, ok := final.(Model)
	if !ok {
		return Model{}, errors.New("unexpected tui model")
	}
	m.cancel()
	return m, nil
}
