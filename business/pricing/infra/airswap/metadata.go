package airswap

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/perich/ethereum-dex-prices-service/internal/asset"
	"github.com/perich/ethereum-dex-prices-service/internal/httpclient"
)

const metadataTTL = 10 * time.Minute

// flexInt accepts both 18 and "18".
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// TokenMetadata is one entry of the network's token list.
type TokenMetadata struct {
	Symbol   string  `json:"symbol"`
	Address  string  `json:"address"`
	Decimals flexInt `json:"decimals"`
	Banned   bool    `json:"banned"`
}

// tokenDirectory resolves symbols from the remote token list, falling back
// to the local registry when the list is unreachable or silent.
type tokenDirectory struct {
	client   httpclient.Client
	url      string
	registry *asset.Registry

	mu        sync.Mutex
	tokens    []TokenMetadata
	fetchedAt time.Time
}

// lookup returns the token for symbol. ok is false when the symbol is banned
// or unknown everywhere.
func (d *tokenDirectory) lookup(ctx context.Context, symbol string) (*asset.Token, bool) {
	tokens, err := d.list(ctx)
	if err == nil {
		for _, t := range tokens {
			if !strings.EqualFold(t.Symbol, symbol) {
				continue
			}
			if t.Banned {
				return nil, false
			}
			if !common.IsHexAddress(t.Address) || t.Decimals < 0 || t.Decimals > asset.MaxDecimals {
				break
			}
			return asset.NewToken(t.Symbol, common.HexToAddress(t.Address), uint8(t.Decimals)), true
		}
	}
	return d.registry.BySymbol(symbol)
}

func (d *tokenDirectory) list(ctx context.Context) ([]TokenMetadata, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tokens != nil && time.Since(d.fetchedAt) < metadataTTL {
		return d.tokens, nil
	}

	var tokens []TokenMetadata
	_, err := d.client.NewRequestWithOptions(httpclient.WithResponseErrorHandler(httpclient.StatusError)).
		SetResult(&tokens).
		Get(ctx, d.url)
	if err != nil {
		return nil, err
	}
	d.tokens = tokens
	d.fetchedAt = time.Now()
	return tokens, nil
}
