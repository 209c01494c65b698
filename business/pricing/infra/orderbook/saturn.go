package orderbook

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
	"github.com/perich/ethereum-dex-prices-service/internal/httpclient"
)

// etherAddress is how Saturn names the ETH side of a pair.
const etherAddress = "0x0000000000000000000000000000000000000000"

// Saturn resolves the token address from the chain dashboard, then reads the
// full order list for token/ETH. Its buys are the resting asks.
type Saturn struct {
	client httpclient.Client
	chain  string
}

// NewSaturn creates the Saturn Network fetcher for the eth chain.
func NewSaturn(client httpclient.Client) *Saturn {
	return &Saturn{client: client, chain: "eth"}
}

type saturnListing struct {
	Token struct {
		Symbol  string `json:"symbol"`
		Address string `json:"address"`
	} `json:"token"`
}

type saturnOrder struct {
	Price   decimal.Decimal `json:"price"`
	Balance decimal.Decimal `json:"balance"`
}

type saturnBook struct {
	Buys  []saturnOrder `json:"buys"`
	Sells []saturnOrder `json:"sells"`
}

func saturnLevels(in []saturnOrder) []domain.PriceLevel {
	out := make([]domain.PriceLevel, len(in))
	for i, o := range in {
		out[i] = domain.PriceLevel{Price: o.Price, Amount: o.Balance}
	}
	return out
}

// Fetch implements Fetcher.
func (s *Saturn) Fetch(ctx context.Context, symbol string) (Snapshot, error) {
	var listings []saturnListing
	if err := get(ctx, s.client, "dashboard/"+s.chain+".json", &listings); err != nil {
		return Snapshot{}, err
	}

	address := ""
	for _, l := range listings {
		if strings.EqualFold(l.Token.Symbol, symbol) && l.Token.Address != "" {
			address = l.Token.Address
			break
		}
	}
	if address == "" {
		return Snapshot{}, nil
	}

	var raw saturnBook
	if err := get(ctx, s.client, "orders/"+s.chain+"/"+address+"/"+etherAddress+"/all.json", &raw); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Book: &domain.Book{
		Asks: saturnLevels(raw.Buys),
		Bids: saturnLevels(raw.Sells),
	}}, nil
}
