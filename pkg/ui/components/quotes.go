// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// QuoteTable renders ranked venue results for one request.
type QuoteTable struct {
	dir     domain.Direction
	amount  string
	symbol  string
	results []domain.QuoteResult
}

// NewQuoteTable creates a table for dir amount symbol.
func NewQuoteTable(dir domain.Direction, amount, symbol string) *QuoteTable {
	return &QuoteTable{dir: dir, amount: amount, symbol: symbol}
}

// Update replaces the results. They are expected best first.
func (q *QuoteTable) Update(results []domain.QuoteResult) {
	q.results = results
}

// Banner names the best venue, or says nothing was priced.
func (q *QuoteTable) Banner() string {
	if len(q.results) == 0 || !q.results[0].OK() {
		return "No good orders found!"
	}
	best := q.results[0]
	return fmt.Sprintf("You can find the best price on %s! %s %s @ %s %s/ETH",
		best.ExchangeName, q.dir, q.amount, best.AvgPrice.Decimal.String(), q.symbol)
}

// View renders the table.
func (q *QuoteTable) View() string {
	if len(q.results) == 0 {
		return dimStyle.Render("No venues configured.")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s %s %s", q.dir, q.amount, q.symbol)))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %-3s %-14s %22s %22s\n", "#", "Venue", "Total (ETH)", "Avg (ETH)"))
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 64)) + "\n")

	for i, r := range q.results {
		if !r.OK() {
			b.WriteString(fmt.Sprintf("  %-3d %-14s %s\n", i+1, r.ExchangeName, errorStyle.Render(r.Error)))
			continue
		}
		line := fmt.Sprintf("  %-3d %-14s %22s %22s", i+1, r.ExchangeName,
			r.TotalPrice.Decimal.StringFixed(8), r.AvgPrice.Decimal.StringFixed(8))
		if i == 0 {
			line = positiveStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
