package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
)

func newModel() Model {
	return New(context.Background(), domain.DirectionBuy, "100", "ZRX", []string{"Kyber", "IDEX"},
		func(ctx context.Context) ([]domain.QuoteResult, error) { return nil, nil })
}

func TestModel_ShowsSpinnerUntilQuotes(t *testing.T) {
	m := newModel()
	if view := m.View(); !strings.Contains(view, "asking 2 venues: Kyber, IDEX") {
		t.Fatalf("expected pending view, got:\n%s", view)
	}

	results := []domain.QuoteResult{
		domain.NewQuote("Kyber", "ZRX", decimal.NewFromInt(100), decimal.RequireFromString("0.25")),
	}
	next, cmd := m.Update(QuotesMsg{Results: results})
	if cmd == nil {
		t.Fatal("expected quit command after results")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected tea.QuitMsg")
	}

	view := next.(Model).View()
	if !strings.Contains(view, "You can find the best price on Kyber! BUY 100 @ 0.0025 ZRX/ETH") {
		t.Errorf("expected banner, got:\n%s", view)
	}
}

func TestModel_Error(t *testing.T) {
	m := newModel()
	next, _ := m.Update(ErrorMsg{Error: errors.New("must specify BUY or SELL")})
	fm := next.(Model)
	if fm.Err() == nil || !strings.Contains(fm.View(), "must specify BUY or SELL") {
		t.Errorf("expected error view, got:\n%s", fm.View())
	}
}

func TestModel_QuitKey(t *testing.T) {
	m := newModel()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !strings.Contains(next.(Model).View(), "cancelled") {
		t.Errorf("expected cancelled view")
	}
}

func TestPrintPlain_NoOrders(t *testing.T) {
	out := PrintPlain(domain.DirectionSell, "1", "ZRX", []domain.QuoteResult{
		domain.NewFailedQuote("IDEX", "ZRX", decimal.NewFromInt(1), "no price data found on IDEX for ZRX"),
	})
	if !strings.Contains(out, "No good orders found!") {
		t.Errorf("expected no-orders banner, got:\n%s", out)
	}
}
