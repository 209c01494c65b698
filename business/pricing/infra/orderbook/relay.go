package orderbook

import (
	"context"
	"strings"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
	"github.com/perich/ethereum-dex-prices-service/internal/httpclient"
)

// relayBook is the 0x standard relayer book body.
type relayBook struct {
	Asks []relayLevel `json:"asks"`
	Bids []relayLevel `json:"bids"`
}

func (b relayBook) book() *domain.Book {
	return &domain.Book{
		Asks: relayLevels(b.Asks),
		Bids: relayLevels(b.Bids),
	}
}

// RadarRelay lists its markets up front. DAI trades as WETH-DAI.
type RadarRelay struct {
	client httpclient.Client
}

// NewRadarRelay creates the Radar Relay fetcher.
func NewRadarRelay(client httpclient.Client) *RadarRelay {
	return &RadarRelay{client: client}
}

type radarMarket struct {
	ID string `json:"id"`
}

// Fetch implements Fetcher.
func (r *RadarRelay) Fetch(ctx context.Context, symbol string) (Snapshot, error) {
	symbol = strings.ToUpper(symbol)
	inverted := symbol == "DAI"

	market := symbol + "-WETH"
	if inverted {
		market = "WETH-" + symbol
	}

	var markets []radarMarket
	if err := get(ctx, r.client, "markets", &markets); err != nil {
		return Snapshot{}, err
	}
	listed := false
	for _, m := range markets {
		if m.ID == market {
			listed = true
			break
		}
	}
	if !listed {
		return Snapshot{}, nil
	}

	var raw relayBook
	if err := get(ctx, r.client, "markets/"+strings.ToLower(market)+"/book", &raw); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Book: raw.book(), Inverted: inverted}, nil
}

// BambooRelay exposes per-market details with an active flag.
type BambooRelay struct {
	client httpclient.Client
}

// NewBambooRelay creates the Bamboo Relay fetcher.
func NewBambooRelay(client httpclient.Client) *BambooRelay {
	return &BambooRelay{client: client}
}

type bambooMarket struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

// Fetch implements Fetcher.
func (b *BambooRelay) Fetch(ctx context.Context, symbol string) (Snapshot, error) {
	market := strings.ToUpper(symbol) + "-WETH"

	var details bambooMarket
	if err := get(ctx, b.client, "markets/"+market, &details); err != nil {
		return Snapshot{}, err
	}
	if !details.Active {
		return Snapshot{}, nil
	}

	var raw relayBook
	if err := get(ctx, b.client, "markets/"+market+"/book", &raw); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Book: raw.book()}, nil
}
