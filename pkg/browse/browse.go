// Package browse is the interactive search screen: every edit of the query reruns
// the search and redraws the result list.
package browse

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/japaniel/dilemmaguide/pkg/dilemma"
	"github.com/japaniel/dilemmaguide/pkg/render"
)

// Searcher is the query side of a dilemma.Store.
type Searcher interface {
	Len() int
	Search(query string) []dilemma.DilemmaGroup
}

// Model is the bubbletea model for the search screen.
type Model struct {
	input       textinput.Model
	viewport    viewport.Model
	store       Searcher
	renderer    *render.Renderer
	feedbackURL string
	logger      *zap.Logger

	query   string
	results []dilemma.DilemmaGroup
	width   int
	height  int
}

// Options configures a Model.
type Options struct {
	Plain       bool
	FeedbackURL string
	Logger      *zap.Logger
}

// New creates a focused search screen over store.
func New(store Searcher, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "请输入困境名称 (如: 上古战场)..."
	ti.Prompt = "🔍 "
	ti.Focus()

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := Model{
		input:       ti,
		viewport:    viewport.New(80, 20),
		store:       store,
		renderer:    render.New(opts.Plain),
		feedbackURL: opts.FeedbackURL,
		logger:      logger,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = msg.Width - 6
		m.viewport.Width = msg.Width
		// header (2 lines) + input + spacing
		m.viewport.Height = msg.Height - 5
		if m.viewport.Height < 1 {
			m.viewport.Height = 1
		}
		m.renderer.Width = msg.Width - 4
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	if q := m.input.Value(); q != m.query {
		m.query = q
		m.refresh()
	}
	return m, tea.Batch(cmds...)
}

// refresh reruns the search and redraws the result viewport.
func (m *Model) refresh() {
	m.results = m.store.Search(m.query)
	m.logger.Debug("search", zap.String("query", m.query), zap.Int("groups", len(m.results)))

	content := m.renderer.Results(m.query, m.results) + "\n\n" + m.renderer.Footer(m.feedbackURL)
	m.viewport.SetContent(content)
	m.viewport.GotoTop()
}

// View implements tea.Model.
func (m Model) View() string {
	return m.renderer.Header(m.store.Len()) + "\n" + m.input.View() + "\n\n" + m.viewport.View()
}

// Query returns the current search text.
func (m Model) Query() string { return m.query }

// Results returns the groups currently displayed.
func (m Model) Results() []dilemma.DilemmaGroup { return m.results }

// Run starts the interactive program on the terminal and blocks until the user quits.
func Run(store Searcher, opts Options) error {
	p := tea.NewProgram(New(store, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
