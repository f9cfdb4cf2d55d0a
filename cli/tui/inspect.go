package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/annealab/crucible/cli/reader"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_run":
		content = m.renderInspectRun()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectRun() string {
	data, ok := m.data.(*reader.InspectRunResponse)
	if !ok {
		return "Invalid data type for inspect_run"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Run Details"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Run ID", data.RunID},
		{"Material", data.MaterialID},
		{"Created At", data.CreatedAt},
		{"Config Hash", data.ConfigHash},
		{"Commit", data.GitCommit},
		{"Status", data.Status},
		{"Passed", verdictString(data.Passed)},
	}
	if data.EnergyEV != nil {
		rows = append(rows, []string{"Energy (eV)", formatFloat(*data.EnergyEV)})
	}
	if data.MaxForce != nil {
		rows = append(rows, []string{"Max Force", formatFloat(*data.MaxForce)})
	}
	if data.RelaxSteps != nil {
		rows = append(rows, []string{"Relax Steps", strconv.Itoa(*data.RelaxSteps)})
	}
	rows = append(rows, []string{"Retries Used", strconv.Itoa(data.RetriesUsed)})

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := row[1]
		switch row[0] {
		case "Status":
			value = StatusStyle(data.Status).Render(value)
		case "Passed":
			value = VerdictStyle(data.Passed).Render(value)
		default:
			value = ValueStyle.Render(value)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	if len(data.Reasons) > 0 {
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render("Reasons:"))
		b.WriteString("\n")
		for _, reason := range data.Reasons {
			b.WriteString(fmt.Sprintf("  • %s\n", ErrorStyle.Render(reason)))
		}
	}

	return BoxStyle.Render(b.String())
}

func verdictString(passed *bool) string {
	if passed == nil {
		return "pending"
	}
	return strconv.FormatBool(*passed)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
