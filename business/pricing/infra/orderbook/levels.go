package orderbook

import (
	"github.com/shopspring/decimal"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
)

// amountLevel is the {price, amount} shape most venues share.
type amountLevel struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

func amountLevels(in []amountLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, len(in))
	for i, l := range in {
		out[i] = domain.PriceLevel{Price: l.Price, Amount: l.Amount}
	}
	return out
}

// quantityLevel is Switcheo's {price, quantity}.
type quantityLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

func quantityLevels(in []quantityLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, len(in))
	for i, l := range in {
		out[i] = domain.PriceLevel{Price: l.Price, Amount: l.Quantity}
	}
	return out
}

// relayLevel is the 0x standard relayer book entry used by Radar and Bamboo.
type relayLevel struct {
	Price                    decimal.Decimal `json:"price"`
	RemainingBaseTokenAmount decimal.Decimal `json:"remainingBaseTokenAmount"`
}

func relayLevels(in []relayLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, len(in))
	for i, l := range in {
		out[i] = domain.PriceLevel{Price: l.Price, Amount: l.RemainingBaseTokenAmount}
	}
	return out
}
