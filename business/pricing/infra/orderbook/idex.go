package orderbook

import (
	"context"
	"strings"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
	"github.com/perich/ethereum-dex-prices-service/internal/httpclient"
)

const idexDepth = 100

// IDEX takes the market in a POST body and answers with an error field for
// unknown markets.
type IDEX struct {
	client httpclient.Client
}

// NewIDEX creates the IDEX fetcher.
func NewIDEX(client httpclient.Client) *IDEX {
	return &IDEX{client: client}
}

type idexRequest struct {
	Market string `json:"market"`
	Count  int    `json:"count"`
}

type idexBook struct {
	Asks  []amountLevel `json:"asks"`
	Bids  []amountLevel `json:"bids"`
	Error string        `json:"error"`
}

// Fetch implements Fetcher.
func (i *IDEX) Fetch(ctx context.Context, symbol string) (Snapshot, error) {
	var raw idexBook
	_, err := i.client.NewRequestWithOptions(httpclient.WithResponseErrorHandler(httpclient.StatusError)).
		SetBody(idexRequest{Market: "ETH_" + strings.ToUpper(symbol), Count: idexDepth}).
		SetResult(&raw).
		Post(ctx, "returnOrderBook")
	if err != nil {
		return Snapshot{}, err
	}
	if raw.Error != "" {
		return Snapshot{}, nil
	}
	return Snapshot{Book: &domain.Book{
		Asks: amountLevels(raw.Asks),
		Bids: amountLevels(raw.Bids),
	}}, nil
}
