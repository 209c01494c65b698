// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
)

// QuoteSource is a venue that can price a trade in ETH.
type QuoteSource interface {
	// Name is the venue label shown to users (e.g. "DDEX").
	Name() string

	// ComputePrice prices amount of symbol. Failures are reported through
	// QuoteResult.Error, never as a panic or a missing result.
	ComputePrice(ctx context.Context, symbol string, amount decimal.Decimal, isSell bool) domain.QuoteResult
}
