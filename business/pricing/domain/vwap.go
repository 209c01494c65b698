package domain

import (
	"github.com/shopspring/decimal"

	"github.com/perich/ethereum-dex-prices-service/internal/apperror"
)

// ErrInsufficientLiquidity is returned when a side cannot fill the requested amount.
var ErrInsufficientLiquidity = apperror.New(apperror.CodeInsufficientLiquidity)

// Fill is the executable result of walking one side of a ladder.
type Fill struct {
	AvgPrice   decimal.Decimal
	TotalPrice decimal.Decimal
}

// Price walks side until the cumulative amount covers desired and returns the
// volume-weighted fill. Only the part of the last touched rung that is needed
// is charged.
func Price(side []Rung, desired decimal.Decimal) (Fill, error) {
	if !desired.IsPositive() {
		return Fill{}, apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext("amount: "+desired.String()))
	}

	for i, r := range side {
		if r.LotAmount.LessThan(desired) {
			continue
		}

		if i == 0 {
			return Fill{
				AvgPrice:   r.LevelPrice,
				TotalPrice: r.LevelPrice.Mul(desired),
			}, nil
		}

		prev := side[i-1]
		remainder := desired.Sub(prev.LotAmount)
		total := prev.LotPrice.Add(remainder.Mul(r.LevelPrice))
		return Fill{
			AvgPrice:   total.Div(desired),
			TotalPrice: total,
		}, nil
	}

	return Fill{}, ErrInsufficientLiquidity
}
