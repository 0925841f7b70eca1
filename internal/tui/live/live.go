package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sitetester/internal/stats"
	"sitetester/internal/tui/components"
	"sitetester/internal/tui/styles"
)

// Model is the dashboard shown while a run is in progress. It is fed
// stats.Snapshot messages by the parent model.
type Model struct {
	Stats    stats.Snapshot
	Progress progress.Model

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	StartTime  time.Time
	Duration   time.Duration
	LastUpdate time.Time
	LastReqs   uint64

	Width  int
	Height int
}

func NewModel(totalDur time.Duration) Model {
	now := time.Now()
	return Model{
		Progress:    progress.New(progress.WithDefaultGradient()),
		RpsLine:     components.NewSparkline(40, "RPS (completed)", styles.Active),
		LatencyLine: components.NewSparkline(40, "Latency P90 (ms)", styles.Warn),
		StartTime:   now,
		Duration:    totalDur,
		LastUpdate:  now,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Elapsed is the share of the scheduling span already covered, in [0,1].
func (m Model) Elapsed(now time.Time) float64 {
	if m.Duration <= 0 {
		return 1
	}
	pct := float64(now.Sub(m.StartTime)) / float64(m.Duration)
	if pct > 1 {
		pct = 1
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stats.Snapshot:
		now := time.Now()
		dt := now.Sub(m.LastUpdate).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}

		m.RpsLine.Add(float64(msg.Requests-m.LastReqs) / dt)
		m.LatencyLine.Add(msg.P90Ms)

		m.Stats = msg
		m.LastReqs = msg.Requests
		m.LastUpdate = now

		return m, m.Progress.SetPercent(m.Elapsed(now))

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 6
		if half < 10 {
			half = 10
		}
		m.RpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	snap := m.Stats
	errRate := snap.ErrorRate()

	col1 := fmt.Sprintf("REQ: %d\nINF: %d", snap.Requests, snap.Inflight)
	col2 := styles.Rate(errRate).Render(fmt.Sprintf("ERR: %.2f%%\nFAIL: %d", errRate, snap.Fail))
	col3 := fmt.Sprintf("MEAN: %s\nKB: %d",
		styles.Value.Render(fmt.Sprintf("%.2f ms", snap.MeanMs)),
		snap.Bytes/1024,
	)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(col2),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf(
		"P50: %.2f ms  |  P90: %.2f ms  |  P99: %.2f ms  |  Max: %.2f ms",
		snap.P50Ms, snap.P90Ms, snap.P99Ms, snap.MaxMs,
	)
	box := styles.Box
	if m.Width > 4 {
		box = box.Width(m.Width - 4)
	}
	s.WriteString(box.Render(latencies))
	s.WriteString("\n\n")

	if m.Elapsed(time.Now()) >= 1 && snap.Inflight > 0 {
		s.WriteString(styles.Warn.Render(fmt.Sprintf("Draining %d requests...", snap.Inflight)))
		s.WriteString("\n")
	}
	s.WriteString(m.Progress.View())

	return s.String()
}
