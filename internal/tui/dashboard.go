package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/acr9/corral/pkg/models"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// batchItemMsg carries one terminal BatchItem into the dashboard's
// scrolling completion log.
type batchItemMsg models.BatchItem

// DashModel renders a live view of an in-progress batch run: a
// progress bar keyed off completed/total, outcome counter boxes, and a
// scrolling log of the most recent completions.
type DashModel struct {
	arn      string
	total    int
	start    time.Time
	progress progress.Model
	tick     int

	summary models.BatchSummary
	recent  []string // most recent completions first
}

const maxRecentLines = 8

// NewDashModel builds a dashboard for a run of total jobs against
// runtimeARN.
func NewDashModel(runtimeARN string, total int) *DashModel {
	p := progress.New(
		progress.WithScaledGradient("#00FFFF", "#FF6B9D"),
		progress.WithoutPercentage(),
	)
	return &DashModel{
		arn:      runtimeARN,
		total:    total,
		start:    time.Now(),
		progress: p,
	}
}

func (m *DashModel) Init() tea.Cmd {
	return nil
}

func (m *DashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case models.BatchSummary:
		m.summary = msg
		m.tick++
	case batchItemMsg:
		line := formatRecentLine(models.BatchItem(msg))
		m.recent = append([]string{line}, m.recent...)
		if len(m.recent) > maxRecentLines {
			m.recent = m.recent[:maxRecentLines]
		}
	}
	return m, nil
}

func formatRecentLine(item models.BatchItem) string {
	if item.Success {
		return fmt.Sprintf("%s job[%d] %s",
			successText.Render("✓"),
			item.Index,
			metaStyle.Render(item.Elapsed.Round(time.Millisecond).String()))
	}
	errMsg := item.Error
	if len(errMsg) > 60 {
		errMsg = errMsg[:57] + "..."
	}
	return fmt.Sprintf("%s job[%d] %s", errText.Render("✗"), item.Index, errText.Render(errMsg))
}

func (m *DashModel) View() string {
	var s strings.Builder

	logoLines := strings.Split(bigAsciiLogo, "\n")
	styledLogo := ""
	for _, line := range logoLines {
		if line != "" {
			styledLogo += lipgloss.NewStyle().Foreground(primaryColor).Bold(true).Render(line) + "\n"
		}
	}

	headerContent := styledLogo
	headerContent += lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Italic(true).Render("  Rollout Batch Dispatcher")

	s.WriteString(headerBoxStyle.Render(headerContent))
	s.WriteString("\n\n")

	targetLine := fmt.Sprintf("🎯 %s  %s",
		targetStyle.Render(m.arn),
		metaStyle.Render(fmt.Sprintf("│ %d jobs total", m.total)))
	s.WriteString(targetLine)
	s.WriteString("\n\n")

	elapsed := time.Since(m.start)
	completed := m.summary.Success + m.summary.Failures
	pct := 0.0
	if m.total > 0 {
		pct = float64(completed) / float64(m.total)
	}
	if pct > 1.0 {
		pct = 1.0
	}

	s.WriteString(dividerStyle.Render(strings.Repeat("━", 80)))
	s.WriteString("\n")

	spinner := GetSpinnerFrame(m.tick)
	progressBar := m.progress.ViewAs(pct)
	timeInfo := fmt.Sprintf("%s  %s elapsed  %d/%d complete",
		lipgloss.NewStyle().Foreground(accentColor).Render(spinner),
		lipgloss.NewStyle().Foreground(primaryColor).Bold(true).Render(elapsed.Round(time.Second).String()),
		completed, m.total)

	s.WriteString(progressBar)
	s.WriteString("\n")
	s.WriteString(timeInfo)
	s.WriteString("\n")
	s.WriteString(dividerStyle.Render(strings.Repeat("━", 80)))
	s.WriteString("\n\n")

	box1Content := fmt.Sprintf("%s\n%s %s\n%s %s\n%s %s",
		lipgloss.NewStyle().Foreground(accentColor).Bold(true).Render("✅ Outcomes"),
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("Success:"),
		successText.Bold(true).Render(fmt.Sprintf("%d", m.summary.Success)),
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("Failed:"),
		errText.Bold(true).Render(fmt.Sprintf("%d", m.summary.Failures)),
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("Timeouts:"),
		warnText.Bold(true).Render(fmt.Sprintf("%d", m.summary.Timeouts)))
	box1 := dashBoxStyle.BorderForeground(accentColor).Width(24).Render(box1Content)

	p50 := formatDuration(m.summary.P50)
	p99 := formatDuration(m.summary.P99)
	maxLat := formatDuration(m.summary.Max)
	box2Content := fmt.Sprintf("%s\n%s %s\n%s %s\n%s %s",
		lipgloss.NewStyle().Foreground(orangeColor).Bold(true).Render("⏱️  Elapsed"),
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("P50:"),
		lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true).Render(p50),
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("P99:"),
		lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true).Render(p99),
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("Max:"),
		lipgloss.NewStyle().Foreground(yellowColor).Bold(true).Render(maxLat))
	box2 := dashBoxStyle.BorderForeground(orangeColor).Width(24).Render(box2Content)

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, box1, box2)
	s.WriteString(row1)
	s.WriteString("\n\n")

	s.WriteString(lipgloss.NewStyle().Foreground(primaryColor).Bold(true).Render("📜 Recent completions"))
	s.WriteString("\n")
	if len(m.recent) == 0 {
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true).Render("  Waiting for results...") + "\n")
	} else {
		for _, line := range m.recent {
			s.WriteString("  " + line + "\n")
		}
	}

	if len(m.summary.ErrorKinds) > 0 {
		s.WriteString("\n")
		s.WriteString(lipgloss.NewStyle().Foreground(errText.GetForeground()).Bold(true).Render("📊 Error kinds"))
		s.WriteString("\n")

		type kv struct {
			Kind  string
			Count int
		}
		var sorted []kv
		for k, v := range m.summary.ErrorKinds {
			sorted = append(sorted, kv{k, v})
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })

		for _, item := range sorted {
			kind := item.Kind
			if len(kind) > 50 {
				kind = kind[:47] + "..."
			}
			s.WriteString(fmt.Sprintf("  %s %s\n",
				errText.Render(fmt.Sprintf("%-52s", kind)),
				lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(fmt.Sprintf("%d", item.Count))))
		}
	}

	return s.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
