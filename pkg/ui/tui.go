package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
	"github.com/perich/ethereum-dex-prices-service/pkg/ui/components"
)

// FetchFunc runs the lookup the view is waiting on.
type FetchFunc func(ctx context.Context) ([]domain.QuoteResult, error)

// Model shows a spinner while venues are queried, then the ranked table.
type Model struct {
	ctx     context.Context
	fetch   FetchFunc
	keys    KeyMap
	spinner spinner.Model
	table   *components.QuoteTable
	sources []string

	started  time.Time
	elapsed  time.Duration
	done     bool
	quitting bool
	err      error
}

// New creates the view for one lookup. sources names the venues being asked.
func New(ctx context.Context, dir domain.Direction, amount, symbol string, sources []string, fetch FetchFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorWarning)

	return Model{
		ctx:     ctx,
		fetch:   fetch,
		keys:    DefaultKeyMap(),
		spinner: s,
		table:   components.NewQuoteTable(dir, amount, symbol),
		sources: sources,
		started: time.Now(),
	}
}

// Init starts the spinner and the lookup.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchCmd())
}

func (m Model) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		results, err := m.fetch(m.ctx)
		if err != nil {
			return ErrorMsg{Error: err}
		}
		return QuotesMsg{Results: results}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}

	case QuotesMsg:
		m.table.Update(msg.Results)
		m.done = true
		m.elapsed = time.Since(m.started)
		return m, tea.Quit

	case ErrorMsg:
		m.err = msg.Error
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Err returns the lookup error, if any.
func (m Model) Err() error {
	return m.err
}

// View renders the TUI.
func (m Model) View() string {
	if m.err != nil {
		return NegativeValue.Render("error: "+m.err.Error()) + "\n"
	}
	if m.quitting && !m.done {
		return MutedValue.Render("cancelled") + "\n"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(" DEX prices "))
	b.WriteString("\n\n")

	if !m.done {
		b.WriteString(fmt.Sprintf("%s%s\n", m.spinner.View(),
			HeaderStyle.Render(fmt.Sprintf("asking %d venues: %s", len(m.sources), strings.Join(m.sources, ", ")))))
		b.WriteString(HelpStyle.Render(m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(BoxStyle.Render(m.table.View()))
	b.WriteString("\n")
	b.WriteString(RenderBanner(m.table.Banner()))
	b.WriteString(MutedValue.Render(fmt.Sprintf("  %d venues in %s", len(m.sources), m.elapsed.Round(time.Millisecond))))
	b.WriteString("\n")
	return b.String()
}

// RenderBanner styles a best-price line.
func RenderBanner(banner string) string {
	if strings.HasPrefix(banner, "No good orders") {
		return NegativeValue.Render(banner) + "\n"
	}
	stars := strings.Repeat("✨", 16)
	return stars + "\n" + PositiveValue.Render(banner) + "\n" + stars + "\n"
}

// Run shows the view until the lookup finishes or the user quits.
func Run(m Model) error {
	final, err := tea.NewProgram(m, tea.WithContext(m.ctx)).Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if fm, ok := final.(Model); ok {
		return fm.Err()
	}
	return nil
}

// PrintPlain writes the table and banner without an interactive program.
func PrintPlain(dir domain.Direction, amount, symbol string, results []domain.QuoteResult) string {
	t := components.NewQuoteTable(dir, amount, symbol)
	t.Update(results)
	return t.View() + "\n" + RenderBanner(t.Banner())
}
