package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strixlab/spelunker/pkg/spelunk"
)

func TestInitialModel(t *testing.T) {
	m := initialModel(nil, "prod")

	assert.Equal(t, "prod", m.profile)
	assert.True(t, m.input.Focused())
	assert.False(t, m.searching)
	assert.Nil(t, m.results)
}

func TestUpdate_EnterWithoutQueryIsIgnored(t *testing.T) {
	m := initialModel(nil, "")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, next.(model).searching)
	assert.Nil(t, cmd)
}

func TestUpdate_EnterDispatchesSearch(t *testing.T) {
	m := initialModel(nil, "")
	m.input.SetValue("index=main error")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.True(t, next.(model).searching)
	require.NotNil(t, cmd, "Enter with a query returns a search command")
}

func TestUpdate_WindowSizeInitializesViewport(t *testing.T) {
	m := initialModel(nil, "")

	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	updated := next.(model)
	assert.True(t, updated.ready)
	assert.Equal(t, 100, updated.width)
	assert.Equal(t, 40, updated.height)
}

func TestUpdate_SearchResultClearsSearching(t *testing.T) {
	m := initialModel(nil, "")
	m.searching = true
	resized, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = resized.(model)
	m.searching = true

	next, _ := m.Update(searchResultMsg{results: []spelunk.SearchResult{{"_raw": "hello"}}})

	updated := next.(model)
	assert.False(t, updated.searching)
	require.Len(t, updated.results, 1)
}

func TestUpdate_EscClearsState(t *testing.T) {
	m := initialModel(nil, "")
	m.input.SetValue("index=main")
	m.results = []spelunk.SearchResult{{"_raw": "x"}}
	m.err = errors.New("boom")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	updated := next.(model)
	assert.Empty(t, updated.input.Value())
	assert.Nil(t, updated.results)
	assert.NoError(t, updated.err)
}

func TestRenderResults(t *testing.T) {
	m := initialModel(nil, "")

	assert.Contains(t, m.renderResults(), "Type a query")

	m.results = []spelunk.SearchResult{}
	assert.Contains(t, m.renderResults(), "No results")

	m.results = []spelunk.SearchResult{{"_time": "12:00", "host": "web-1"}}
	out := m.renderResults()
	assert.Contains(t, out, "_time")
	assert.Contains(t, out, "web-1")

	m.err = errors.New("search failed")
	assert.Contains(t, m.renderResults(), "search failed")
}

func TestRowFields_InternalFieldsFirst(t *testing.T) {
	fields := rowFields(spelunk.SearchResult{
		"host": "a", "_raw": "x", "source": "s", "_time": "t",
	})
	assert.Equal(t, []string{"_raw", "_time", "host", "source"}, fields)
}

func TestView(t *testing.T) {
	m := initialModel(nil, "prod")
	resized, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = resized.(model)

	view := m.View()
	assert.Contains(t, view, "Search [prod]")
	assert.Contains(t, view, "Enter: search")

	m.searching = true
	assert.Contains(t, m.View(), "Searching...")
}
