package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/acr9/corral/pkg/config"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

type Step int

const (
	StepARN Step = iota
	StepBucket
	StepExpID
	StepPayloadField
	StepPayloadTemplate
	StepPayloadData
	StepPayloadCount
	StepConcurrency
	StepTimeout
	StepStopIf
	StepSaveConfig
	StepDone
)

type stepResult struct {
	label string
	value string
}

// SetupModel drives `corral init`'s interactive wizard: one huh form
// per question, building up a config.YAMLConfig the same way the
// teacher's wizard built up a models.Config field by field.
type SetupModel struct {
	cfg     config.YAMLConfig
	current Step
	history []stepResult
	form    *huh.Form

	tempPayloadField    string
	tempPayloadTemplate string
	tempCount           string
	tempConcurrency     string
	tempTimeout         string
	tempStopIf          string
	savePath            string
}

// NewSetupModel builds a fresh wizard with the teacher's defaults
// translated into rollout-batch terms.
func NewSetupModel() *SetupModel {
	m := &SetupModel{
		current:             StepARN,
		history:             make([]stepResult, 0),
		tempPayloadField:    "prompt",
		tempPayloadTemplate: "{{data.prompt}}",
		tempCount:           "10",
		tempConcurrency:     "5",
		tempTimeout:         "5m",
	}
	m.cfg.Payloads.Spec = make(map[string]string)
	m.nextForm()
	return m
}

func (m *SetupModel) nextForm() {
	neon := MakeNeonTheme()

	switch m.current {
	case StepARN:
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Agent Runtime ARN").
					Placeholder("arn:aws:bedrock-agentcore:us-east-1:123456789012:runtime/my-agent").
					Value(&m.cfg.Runtime.ARN).
					Validate(func(s string) error {
						if !strings.HasPrefix(s, "arn:") {
							return fmt.Errorf("must be a full ARN, starting with \"arn:\"")
						}
						return nil
					}),
			),
		).WithTheme(neon)
	case StepBucket:
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Result S3 Bucket").
					Description("Where the runtime writes rollout results").
					Value(&m.cfg.Runtime.Bucket).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("bucket name is required")
						}
						return nil
					}),
			),
		).WithTheme(neon)
	case StepExpID:
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Experiment ID").
					Description("Embedded in every submitted payload's _rollout config").
					Value(&m.cfg.Runtime.ExpID).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("exp_id is required")
						}
						return nil
					}),
			),
		).WithTheme(neon)
	case StepPayloadField:
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Payload Field Name").
					Description("The first field your agent runtime payload needs").
					Value(&m.tempPayloadField),
			),
		).WithTheme(neon)
	case StepPayloadTemplate:
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Field Template").
					Description("Use {{data.<col>}} for CSV columns, or a generator like {{uuid}}").
					Value(&m.tempPayloadTemplate),
			),
		).WithTheme(neon)
	case StepPayloadData:
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("CSV Data Source (optional)").
					Description("Path to a CSV feeder, or leave blank for a fixed job count").
					Value(&m.cfg.Payloads.Data),
			),
		).WithTheme(neon)
	case StepPayloadCount:
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Job Count").
					Description("With a CSV data source, 0 runs one job per row; a larger count cycles the rows").
					Value(&m.tempCount),
			),
		).WithTheme(neon)
	case StepConcurrency:
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Max Concurrent Sessions").
					Description("Rollouts in flight at once").
					Value(&m.tempConcurrency),
			),
		).WithTheme(neon)
	case StepTimeout:
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Per-Job Timeout").
					Description("e.g., 5m, 90s — leave blank to wait forever").
					Value(&m.tempTimeout),
			),
		).WithTheme(neon)
	case StepStopIf:
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Circuit Breaker (optional)").
					Description(`e.g. "errors > 10%" — leave blank to disable`).
					Value(&m.tempStopIf),
			),
		).WithTheme(neon)
	case StepSaveConfig:
		m.savePath = defaultConfigFilename(m.cfg.Runtime.ExpID)
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Save As").
					Value(&m.savePath),
			),
		).WithTheme(neon)
	case StepDone:
		m.form = nil
	}

	if m.form != nil {
		m.form.Init()
	}
}

func defaultConfigFilename(expID string) string {
	name := strings.ReplaceAll(expID, " ", "-")
	if name == "" {
		name = "batch"
	}
	filename := fmt.Sprintf("corral-%s.yaml", name)
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	counter := 2
	for {
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			return filename
		}
		filename = fmt.Sprintf("%s-%d%s", base, counter, ext)
		counter++
	}
}

func (m *SetupModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m *SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.current == StepDone {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		switch m.current {
		case StepARN:
			m.history = append(m.history, stepResult{"Runtime ARN", m.cfg.Runtime.ARN})
			m.current = StepBucket
		case StepBucket:
			m.history = append(m.history, stepResult{"Bucket", m.cfg.Runtime.Bucket})
			m.current = StepExpID
		case StepExpID:
			m.history = append(m.history, stepResult{"Exp ID", m.cfg.Runtime.ExpID})
			m.current = StepPayloadField
		case StepPayloadField:
			m.current = StepPayloadTemplate
		case StepPayloadTemplate:
			m.cfg.Payloads.Spec[m.tempPayloadField] = m.tempPayloadTemplate
			m.history = append(m.history, stepResult{"Payload Field", m.tempPayloadField + " = " + m.tempPayloadTemplate})
			m.current = StepPayloadData
		case StepPayloadData:
			if m.cfg.Payloads.Data != "" {
				m.history = append(m.history, stepResult{"CSV Data", m.cfg.Payloads.Data})
			}
			m.current = StepPayloadCount
		case StepPayloadCount:
			count, _ := strconv.Atoi(m.tempCount)
			m.cfg.Payloads.Count = count
			m.history = append(m.history, stepResult{"Job Count", m.tempCount})
			m.current = StepConcurrency
		case StepConcurrency:
			conc, _ := strconv.Atoi(m.tempConcurrency)
			m.cfg.Batch.MaxConcurrentSessions = conc
			m.history = append(m.history, stepResult{"Concurrency", m.tempConcurrency})
			m.current = StepTimeout
		case StepTimeout:
			m.cfg.Batch.Timeout = m.tempTimeout
			m.history = append(m.history, stepResult{"Timeout", m.tempTimeout})
			m.current = StepStopIf
		case StepStopIf:
			m.cfg.Batch.StopIf = m.tempStopIf
			if m.tempStopIf != "" {
				m.history = append(m.history, stepResult{"Stop If", m.tempStopIf})
			}
			m.current = StepSaveConfig
		case StepSaveConfig:
			if err := config.Save(m.savePath, m.cfg); err != nil {
				m.history = append(m.history, stepResult{"Save Error", err.Error()})
			} else {
				m.history = append(m.history, stepResult{"Saved", m.savePath})
			}
			m.current = StepDone
		}

		if m.current != StepDone {
			m.nextForm()
			return m, m.form.Init()
		}
	}

	return m, cmd
}

func (m *SetupModel) View() string {
	var s strings.Builder

	logo := logoStyle.Render(asciiLogo)
	subtitle := subtitleStyle.Render("Batch Spec Wizard")
	s.WriteString(borderStyle.Render(logo + subtitle))
	s.WriteString("\n\n")

	for _, h := range m.history {
		mark := check.Render("✓")
		label := subtext.Render(h.label + ":")
		val := finalValue.Render(h.value)
		s.WriteString(fmt.Sprintf("  %s %s %s\n", mark, label, val))
	}

	if m.form != nil {
		if len(m.history) > 0 {
			s.WriteString("\n")
		}
		stepNum := int(m.current) + 1
		totalSteps := int(StepDone)
		header := questionHeader.Render(fmt.Sprintf("› Step %d/%d", stepNum, totalSteps))
		s.WriteString(header + "\n")
		s.WriteString(m.form.View())
	} else {
		s.WriteString("\n" + highlight.Render("🚀 Ready! corral run -config "+m.savePath))
	}

	return s.String()
}

// RunInit runs the interactive wizard to completion, saving a batch
// spec YAML file.
func RunInit() error {
	m := NewSetupModel()
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}
