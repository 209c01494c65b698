package orderbook

import (
	"context"
	"slices"
	"strings"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
	"github.com/perich/ethereum-dex-prices-service/internal/httpclient"
)

// Ethfinex lists pairs as lower-case "{sym}eth" ids.
type Ethfinex struct {
	client httpclient.Client
}

// NewEthfinex creates the Ethfinex fetcher.
func NewEthfinex(client httpclient.Client) *Ethfinex {
	return &Ethfinex{client: client}
}

type ethfinexBook struct {
	Asks []amountLevel `json:"asks"`
	Bids []amountLevel `json:"bids"`
}

// Fetch implements Fetcher.
func (e *Ethfinex) Fetch(ctx context.Context, symbol string) (Snapshot, error) {
	market := strings.ToLower(symbol) + "eth"

	var markets []string
	if err := get(ctx, e.client, "symbols", &markets); err != nil {
		return Snapshot{}, err
	}
	if !slices.Contains(markets, market) {
		return Snapshot{}, nil
	}

	var raw ethfinexBook
	if err := get(ctx, e.client, "book/"+market, &raw); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Book: &domain.Book{
		Asks: amountLevels(raw.Asks),
		Bids: amountLevels(raw.Bids),
	}}, nil
}
