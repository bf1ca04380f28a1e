// Package tui is an interactive search console built on Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/strixlab/spelunker/pkg/spelunk"
)

const searchTimeout = 2 * time.Minute

var (
	comment = lipgloss.Color("#6272a4")
	cyan    = lipgloss.Color("#8be9fd")
	green   = lipgloss.Color("#50fa7b")
	purple  = lipgloss.Color("#bd93f9")
	red     = lipgloss.Color("#ff5555")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Padding(0, 1)

	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(comment).
			Padding(0, 1)

	fieldStyle = lipgloss.NewStyle().
			Foreground(cyan)

	countStyle = lipgloss.NewStyle().
			Foreground(green)

	helpStyle = lipgloss.NewStyle().
			Foreground(comment)

	errorStyle = lipgloss.NewStyle().
			Foreground(red)
)

type model struct {
	client    *spelunk.Client
	profile   string
	input     textinput.Model
	viewport  viewport.Model
	results   []spelunk.SearchResult
	err       error
	searching bool
	ready     bool
	width     int
	height    int
}

type searchResultMsg struct {
	results []spelunk.SearchResult
	err     error
}

func initialModel(client *spelunk.Client, profile string) model {
	ti := textinput.New()
	ti.Placeholder = "index=main error | head 100"
	ti.Focus()
	ti.Width = 60

	return model{
		client:  client,
		profile: profile,
		input:   ti,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			if m.input.Value() != "" && !m.searching {
				m.searching = true
				m.err = nil
				return m, m.doSearch(m.input.Value())
			}
		case "esc":
			m.input.SetValue("")
			m.results = nil
			m.err = nil
			m.viewport.SetContent("")
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport = viewport.New(msg.Width, msg.Height-7)
		m.ready = true
		m.viewport.SetContent(m.renderResults())

	case searchResultMsg:
		m.searching = false
		m.results = msg.results
		m.err = msg.err
		m.viewport.SetContent(m.renderResults())
		m.viewport.GotoTop()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m model) doSearch(query string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
		defer cancel()

		results, err := client.Search.Run(ctx, query, nil)
		if err != nil {
			return searchResultMsg{err: err}
		}
		return searchResultMsg{results: results}
	}
}

func (m model) renderResults() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	if m.results == nil {
		return helpStyle.Render("Type a query and press Enter.")
	}
	if len(m.results) == 0 {
		return helpStyle.Render("No results found")
	}

	var sb strings.Builder
	for i, row := range m.results {
		sb.WriteString(countStyle.Render(fmt.Sprintf("#%d", i+1)))
		sb.WriteString("\n")
		for _, field := range rowFields(row) {
			sb.WriteString("  ")
			sb.WriteString(fieldStyle.Render(field + ":"))
			sb.WriteString(" ")
			sb.WriteString(fmt.Sprint(row[field]))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// rowFields orders a row's field names, internal fields first.
func rowFields(row spelunk.SearchResult) []string {
	var internal, regular []string
	for field := range row {
		if strings.HasPrefix(field, "_") {
			internal = append(internal, field)
		} else {
			regular = append(regular, field)
		}
	}
	sort.Strings(internal)
	sort.Strings(regular)
	return append(internal, regular...)
}

func (m model) View() string {
	var sb strings.Builder

	title := "Search"
	if m.profile != "" {
		title = fmt.Sprintf("Search [%s]", m.profile)
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")

	sb.WriteString(inputStyle.Render(m.input.View()))
	sb.WriteString("\n\n")

	switch {
	case m.searching:
		sb.WriteString(helpStyle.Render("Searching..."))
	case m.ready:
		sb.WriteString(m.viewport.View())
	}

	sb.WriteString("\n")
	status := "Enter: search • Esc: clear • Ctrl+C: quit"
	if len(m.results) > 0 {
		status = fmt.Sprintf("%d results • %s", len(m.results), status)
	}
	sb.WriteString(helpStyle.Render(status))

	return sb.String()
}

// Run starts the interactive search console against one client.
func Run(client *spelunk.Client, profile string) error {
	p := tea.NewProgram(initialModel(client, profile), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
