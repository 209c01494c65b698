package components

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
)

func TestQuoteTable_Banner(t *testing.T) {
	amount := decimal.NewFromInt(100)

	tests := []struct {
		name    string
		results []domain.QuoteResult
		want    string
	}{
		{
			name: "best priced venue",
			results: []domain.QuoteResult{
				domain.NewQuote("Kyber", "ZRX", amount, decimal.RequireFromString("0.25")),
				domain.NewFailedQuote("IDEX", "ZRX", amount, "no price data found on IDEX for ZRX"),
			},
			want: "You can find the best price on Kyber! BUY 100 @ 0.0025 ZRX/ETH",
		},
		{
			name: "nothing priced",
			results: []domain.QuoteResult{
				domain.NewFailedQuote("IDEX", "ZRX", amount, "no price data found on IDEX for ZRX"),
			},
			want: "No good orders found!",
		},
		{name: "no venues", want: "No good orders found!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQuoteTable(domain.DirectionBuy, "100", "ZRX")
			q.Update(tt.results)
			if got := q.Banner(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestQuoteTable_ViewListsEveryVenue(t *testing.T) {
	amount := decimal.NewFromInt(100)
	q := NewQuoteTable(domain.DirectionSell, "100", "ZRX")
	q.Update([]domain.QuoteResult{
		domain.NewQuote("Uniswap", "ZRX", amount, decimal.RequireFromString("0.2")),
		domain.NewFailedQuote("Bancor", "ZRX", amount, "Bancor does not quote sells"),
	})

	view := q.View()
	for _, want := range []string{"Uniswap", "0.20000000", "Bancor does not quote sells"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q:\n%s", want, view)
		}
	}
}
