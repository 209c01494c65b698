package orderbook

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
	"github.com/perich/ethereum-dex-prices-service/internal/httpclient"
)

// ddexQuoteTokens are listed against WETH as the base asset.
var ddexQuoteTokens = []string{"DAI", "TUSD", "USDC", "USDT", "PAX"}

// DDEX serves level-2 books per market id.
type DDEX struct {
	client httpclient.Client
}

// NewDDEX creates the DDEX fetcher.
func NewDDEX(client httpclient.Client) *DDEX {
	return &DDEX{client: client}
}

type ddexResponse struct {
	Data struct {
		OrderBook struct {
			Asks []amountLevel `json:"asks"`
			Bids []amountLevel `json:"bids"`
		} `json:"orderBook"`
	} `json:"data"`
}

// Fetch implements Fetcher. A book missing either side is treated as unlisted.
func (d *DDEX) Fetch(ctx context.Context, symbol string) (Snapshot, error) {
	symbol = strings.ToUpper(symbol)
	inverted := slices.Contains(ddexQuoteTokens, symbol)

	market := symbol + "-WETH"
	if inverted {
		market = "WETH-" + symbol
	}

	var raw ddexResponse
	if err := get(ctx, d.client, fmt.Sprintf("markets/%s/orderbook?level=2", market), &raw); err != nil {
		return Snapshot{}, err
	}

	ob := raw.Data.OrderBook
	if len(ob.Asks) == 0 || len(ob.Bids) == 0 {
		return Snapshot{}, nil
	}
	return Snapshot{
		Book: &domain.Book{
			Asks: amountLevels(ob.Asks),
			Bids: amountLevels(ob.Bids),
		},
		Inverted: inverted,
	}, nil
}
