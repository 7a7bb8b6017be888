package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/acr9/corral/pkg/models"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type SummaryModel struct {
	summary  models.BatchSummary
	reportAt string // path the HTML report was written to, empty if none
}

func NewSummaryModel(summary models.BatchSummary, reportAt string) *SummaryModel {
	return &SummaryModel{summary: summary, reportAt: reportAt}
}

func (m *SummaryModel) Init() tea.Cmd {
	return nil
}

func (m *SummaryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m, nil
}

// Styles
var (
	sumHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FFFF")).
			Bold(true).
			MarginBottom(1)

	sumStatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginRight(2)

	sumValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)
)

func (m *SummaryModel) View() string {
	var s strings.Builder

	logo := logoStyle.Render(asciiLogo)
	s.WriteString(borderStyle.Render(logo))
	s.WriteString("\n")
	s.WriteString(subtitleStyle.Render("Rollout Batch Dispatcher"))
	s.WriteString("\n\n")

	s.WriteString(sumHeaderStyle.Render("📊 Batch Summary"))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Render("🚀 Outcomes"))
	s.WriteString("\n")

	tData := [][]string{
		{"Total Jobs", fmt.Sprintf("%d", m.summary.Total)},
		{"Success Rate", fmt.Sprintf("%.2f%%", m.summary.SuccessRate)},
		{"Succeeded", fmt.Sprintf("%d", m.summary.Success)},
		{"Failed", fmt.Sprintf("%d", m.summary.Failures)},
		{"Timeouts", fmt.Sprintf("%d", m.summary.Timeouts)},
		{"Cancelled", fmt.Sprintf("%d", m.summary.Cancelled)},
	}
	for _, row := range tData {
		s.WriteString(fmt.Sprintf("  %s %s\n", sumStatStyle.Render(fmt.Sprintf("%-15s", row[0]+":")), sumValueStyle.Render(row[1])))
	}
	s.WriteString("\n")

	s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true).Render("Elapsed Distribution:"))
	s.WriteString("\n")

	lData := [][]string{
		{"Min", formatDuration(m.summary.Min)},
		{"P50", formatDuration(m.summary.P50)},
		{"P75", formatDuration(m.summary.P75)},
		{"P90", formatDuration(m.summary.P90)},
		{"P95", formatDuration(m.summary.P95)},
		{"P99", formatDuration(m.summary.P99)},
		{"Max", formatDuration(m.summary.Max)},
	}
	for i := 0; i < len(lData); i += 2 {
		r1 := lData[i]
		s.WriteString(fmt.Sprintf("  %s %s", sumStatStyle.Render(fmt.Sprintf("%-5s", r1[0]+":")), sumValueStyle.Render(fmt.Sprintf("%-12s", r1[1]))))
		if i+1 < len(lData) {
			r2 := lData[i+1]
			s.WriteString(fmt.Sprintf("  %s %s", sumStatStyle.Render(fmt.Sprintf("%-5s", r2[0]+":")), sumValueStyle.Render(r2[1])))
		}
		s.WriteString("\n")
	}
	s.WriteString("\n")

	if len(m.summary.ErrorKinds) > 0 {
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true).Render("❌ Error Kinds"))
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
			s.WriteString(fmt.Sprintf("  %s %s\n", sumStatStyle.Render(fmt.Sprintf("%-52s", kind+":")), sumValueStyle.Render(fmt.Sprintf("%d", item.Count))))
		}
		s.WriteString("\n")
	}

	if m.reportAt != "" {
		s.WriteString(highlight.Render("✨ Report saved to " + m.reportAt))
		s.WriteString("\n")
	}
	s.WriteString(subtext.Render("Press Ctrl+C to exit."))

	return s.String()
}
