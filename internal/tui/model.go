// Package tui implements corral's interactive surfaces: a live batch
// dashboard (`corral run --watch`) and a huh-forms setup wizard
// (`corral init`), both in the teacher's neon bubbletea/lipgloss style.
package tui

import (
	"time"

	"github.com/acr9/corral/internal/report"
	"github.com/acr9/corral/internal/stats"
	"github.com/acr9/corral/pkg/models"
	tea "github.com/charmbracelet/bubbletea"
)

const tickInterval = 100 * time.Millisecond

type State int

const (
	StateRunning State = iota
	StateSummary
)

// MainModel drives the live dashboard for one already-running batch: it
// owns nothing about how the batch was configured, only the channel of
// terminal BatchItems BatchEngine.Run handed back and a Monitor to fold
// them into.
type MainModel struct {
	state      State
	items      <-chan models.BatchItem
	monitor    *stats.Monitor
	reportPath string
	quitting   bool

	dashModel *DashModel
	sumModel  *SummaryModel
}

// NewModel builds a dashboard for a batch of total jobs against
// runtimeARN, draining items as they complete. reportPath is empty when
// no HTML report should be written at the end.
func NewModel(runtimeARN string, total int, items <-chan models.BatchItem, reportPath string) MainModel {
	return MainModel{
		state:      StateRunning,
		items:      items,
		monitor:    stats.NewMonitor(),
		reportPath: reportPath,
		dashModel:  NewDashModel(runtimeARN, total),
	}
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(waitForItem(m.items), m.tick())
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case batchItemMsg:
		m.monitor.Add(models.BatchItem(msg))
		m.dashModel.Update(msg)
		return m, waitForItem(m.items)
	case tickMsg:
		snapshot := m.monitor.Snapshot()
		m.dashModel.Update(snapshot)
		return m, m.tick()
	case finishedMsg:
		m.state = StateSummary
		snapshot := m.monitor.Snapshot()
		reportAt := m.reportPath
		if reportAt != "" {
			if err := report.GenerateHTML(snapshot, reportAt); err != nil {
				reportAt = ""
			}
		}
		m.sumModel = NewSummaryModel(snapshot, reportAt)
	}
	return m, nil
}

type finishedMsg struct{}

type tickMsg struct{}

func (m MainModel) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(_ time.Time) tea.Msg { return tickMsg{} })
}

// waitForItem reads exactly one BatchItem off items and returns it as a
// message, or finishedMsg once the channel is closed. Update re-issues
// this command after every batchItemMsg to keep draining.
func waitForItem(items <-chan models.BatchItem) tea.Cmd {
	return func() tea.Msg {
		item, ok := <-items
		if !ok {
			return finishedMsg{}
		}
		return batchItemMsg(item)
	}
}

func (m MainModel) View() string {
	if m.quitting {
		return "Exiting...\n"
	}
	switch m.state {
	case StateRunning:
		return m.dashModel.View()
	case StateSummary:
		return m.sumModel.View()
	default:
		return "Unknown state"
	}
}
