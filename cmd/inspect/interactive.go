package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var selectedStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4"))

type modelState int

const (
	stateSelectType modelState = iota
	stateFilter
	stateShowType
)

type interactiveModel struct {
	report   *inspectReport
	filter   textinput.Model
	visible  []int
	selected int
	state    modelState
}

func newInteractiveModel(r *inspectReport) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "type name"
	ti.Width = 40
	m := &interactiveModel{report: r, filter: ti, state: stateSelectType}
	m.applyFilter()
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) applyFilter() {
	q := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, t := range m.report.Types {
		if q == "" || strings.Contains(strings.ToLower(t.Name), q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.state == stateFilter {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter", "esc":
			m.filter.Blur()
			m.state = stateSelectType
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.state == stateSelectType && m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.state == stateSelectType && m.selected < len(m.visible)-1 {
			m.selected++
		}

	case "/":
		if m.state == stateSelectType {
			m.state = stateFilter
			return m, m.filter.Focus()
		}

	case "enter":
		switch m.state {
		case stateSelectType:
			if len(m.visible) > 0 {
				m.state = stateShowType
			}
		case stateShowType:
			m.state = stateSelectType
		}

	case "esc":
		m.state = stateSelectType
	}
	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Field Injector"))
	fmt.Fprintf(&b, " heap=%s, %d types, %d failed\n\n", m.report.Heap, len(m.report.Types), m.report.Failed)

	switch m.state {
	case stateSelectType, stateFilter:
		if m.state == stateFilter || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
			b.WriteString("\n\n")
		}
		for i, idx := range m.visible {
			t := m.report.Types[idx]
			line := fmt.Sprintf("%-28s %-9s %s", t.Name, t.Kind, t.State)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else if t.Error != "" {
				b.WriteString(errorStyle.Render("  " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter fields • / filter • q quit"))

	case stateShowType:
		b.WriteString(renderType(m.report.Types[m.visible[m.selected]]))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter/esc back • q quit"))
	}

	return b.String()
}

func runInteractive(r *inspectReport) error {
	p := tea.NewProgram(newInteractiveModel(r), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
