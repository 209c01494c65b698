package orderbook

import (
	"context"
	"slices"
	"strings"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
	"github.com/perich/ethereum-dex-prices-service/internal/httpclient"
)

var switcheoQuoteTokens = []string{"DAI", "PAX"}

// Switcheo serves offers per "{BASE}_{QUOTE}" pair.
type Switcheo struct {
	client httpclient.Client
}

// NewSwitcheo creates the Switcheo fetcher.
func NewSwitcheo(client httpclient.Client) *Switcheo {
	return &Switcheo{client: client}
}

type switcheoBook struct {
	Asks []quantityLevel `json:"asks"`
	Bids []quantityLevel `json:"bids"`
}

// Fetch implements Fetcher.
func (s *Switcheo) Fetch(ctx context.Context, symbol string) (Snapshot, error) {
	symbol = strings.ToUpper(symbol)
	inverted := slices.Contains(switcheoQuoteTokens, symbol)

	pair := symbol + "_ETH"
	if inverted {
		pair = "ETH_" + symbol
	}

	var raw switcheoBook
	_, err := s.client.NewRequestWithOptions(httpclient.WithResponseErrorHandler(httpclient.StatusError)).
		SetQueryParam("pair", pair).
		SetResult(&raw).
		Get(ctx, "v2/offers/book")
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Book: &domain.Book{
			Asks: quantityLevels(raw.Asks),
			Bids: quantityLevels(raw.Bids),
		},
		Inverted: inverted,
	}, nil
}
