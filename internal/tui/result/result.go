package result

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sitetester/internal/runner"
	"sitetester/internal/stats"
	"sitetester/internal/tui/styles"
)

type Model struct {
	Report *stats.Report
	Err    error

	Width  int
	Height int
}

func NewModel(rep *stats.Report, err error) Model {
	return Model{Report: rep, Err: err}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
	}
	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}
	s.WriteString(styles.Title.Render("📊 Test Complete"))
	s.WriteString("\n\n")

	if m.Err != nil {
		s.WriteString(styles.Error.Render("Run ended early: " + m.Err.Error()))
		s.WriteString("\n\n")
	}
	rep := m.Report
	if rep == nil {
		s.WriteString(styles.Subtle.Render("No requests completed."))
		s.WriteString("\n\n")
		s.WriteString(styles.RenderKey("q", "quit"))
		return s.String()
	}

	overview := fmt.Sprintf(
		"Requests: %d\nRPS:      %.2f\nReceived: %d\nSuccess:  %s\nFailed:   %s\nWall:     %s",
		rep.Total, rep.Load.RPSAchieved, rep.Received,
		styles.Success.Render(fmt.Sprintf("%d (%.2f%%)", rep.Success, pct(rep.Success, rep.Total))),
		styles.Rate(pct(rep.Failures.All, rep.Total)).Render(fmt.Sprintf("%d (%.2f%%)", rep.Failures.All, pct(rep.Failures.All, rep.Total))),
		rep.Timestamps.WallDuration.Round(time.Millisecond),
	)

	var kinds []string
	for _, k := range runner.FailureKinds {
		if n := rep.Failures.ByKind(k); n > 0 {
			kinds = append(kinds, fmt.Sprintf("%-10s %d", k.String(), n))
		}
	}
	if len(kinds) == 0 {
		kinds = append(kinds, styles.Subtle.Render("none"))
	}
	if rep.Cancelled > 0 {
		kinds = append(kinds, styles.Warn.Render(fmt.Sprintf("%-10s %d", runner.FailureCancelled.String(), rep.Cancelled)))
	}

	l := rep.Latency
	latency := fmt.Sprintf(
		"Min:  %s\nMean: %s\nP50:  %s\nP90:  %s\nP95:  %s\nP99:  %s\nMax:  %s",
		ms(l.Min), ms(l.Mean), ms(l.Median), ms(l.P90), ms(l.P95), ms(l.P99), ms(l.Max),
	)

	var hist []string
	for _, b := range l.Histogram {
		hist = append(hist, fmt.Sprintf("%-10s %d", b.Label, b.Count))
	}

	var codes []string
	for d := 1; d <= 5; d++ {
		codes = append(codes, fmt.Sprintf("%dxx: %d", d, rep.Status.Class(d)))
	}
	for _, cc := range rep.Status.Codes {
		codes = append(codes, fmt.Sprintf("%d %s: %d", cc.Code, cc.Reason, cc.Count))
	}

	n := rep.Network
	network := fmt.Sprintf(
		"Size:  %.4f MB\nSpeed: %.4f MB/s\nRedir: %d\nCache: %d\nTTFB:  %s\nDial:  %s",
		n.MeanDownloadSizeMB, n.DownloadSpeedMBps, n.LastRedirects, n.Cached, ms(n.MeanTTFB), ms(n.MeanConnect),
	)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		section("Overview", overview),
		section("Failures", strings.Join(kinds, "\n")),
		section("Latency", latency),
	))
	s.WriteString("\n")
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		section("Histogram", strings.Join(hist, "\n")),
		section("Status", strings.Join(codes, "\n")),
		section("Network", network),
	))
	s.WriteString("\n\n")
	s.WriteString(styles.RenderKey("q", "quit"))

	return s.String()
}

func section(title, body string) string {
	return styles.Box.Render(styles.Active.Render(title) + "\n" + body)
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.2f ms", float64(d)/float64(time.Millisecond))
}
