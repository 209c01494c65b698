// Package domain contains the core domain types for the pricing context.
package domain

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/perich/ethereum-dex-prices-service/internal/apperror"
)

// ErrMarketUnavailable is returned when a venue does not list the pair at all.
var ErrMarketUnavailable = apperror.New(apperror.CodeTokenUnavailable)

// PriceLevel is one raw order book level as a venue reports it.
// Amount is in the base asset.
type PriceLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// Book is the raw pair of sides a venue fetcher returns.
type Book struct {
	Asks []PriceLevel
	Bids []PriceLevel
}

// Rung is one normalised level carrying the cumulative totals up to and
// including itself.
type Rung struct {
	LevelPrice  decimal.Decimal `json:"levelPrice"`
	LevelAmount decimal.Decimal `json:"levelAmount"`
	LotPrice    decimal.Decimal `json:"lotPrice"`  // Σ LevelPrice × LevelAmount
	LotAmount   decimal.Decimal `json:"lotAmount"` // Σ LevelAmount
}

// Ladder is a normalised order book. Asks ascend by price, bids descend.
type Ladder struct {
	Asks []Rung `json:"asks"`
	Bids []Rung `json:"bids"`
}

// Side returns the side a trade walks: bids for a sell, asks for a buy.
func (l Ladder) Side(isSell bool) []Rung {
	if isSell {
		return l.Bids
	}
	return l.Asks
}

// Invert re-expresses a book listed in the opposite orientation.
// Each level becomes price' = 1/price and amount' = price × amount, and the
// sides swap: what was offered for sale in one orientation is a bid in the other.
func (b Book) Invert() Book {
	return Book{
		Asks: invertLevels(b.Bids),
		Bids: invertLevels(b.Asks),
	}
}

func invertLevels(levels []PriceLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, l := range levels {
		if !l.Price.IsPositive() {
			continue
		}
		out = append(out, PriceLevel{
			Price:  decimal.NewFromInt(1).Div(l.Price),
			Amount: l.Price.Mul(l.Amount),
		})
	}
	return out
}

// BuildLadder sorts both sides and accumulates running totals.
// Levels with a non-positive price or amount are dropped.
func BuildLadder(book Book) Ladder {
	asks := usable(book.Asks)
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })

	bids := usable(book.Bids)
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })

	return Ladder{
		Asks: accumulate(asks),
		Bids: accumulate(bids),
	}
}

// Normalize turns a fetched book into a ladder. A nil book means the venue
// does not list the pair, which is different from a listed but empty book.
func Normalize(book *Book, inverted bool) (Ladder, error) {
	if book == nil {
		return Ladder{}, ErrMarketUnavailable
	}
	b := *book
	if inverted {
		b = b.Invert()
	}
	return BuildLadder(b), nil
}

func usable(levels []PriceLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, l := range levels {
		if l.Price.IsPositive() && l.Amount.IsPositive() {
			out = append(out, l)
		}
	}
	return out
}

func accumulate(levels []PriceLevel) []Rung {
	rungs := make([]Rung, len(levels))
	lotPrice, lotAmount := decimal.Zero, decimal.Zero
	for i, l := range levels {
		lotPrice = lotPrice.Add(l.Price.Mul(l.Amount))
		lotAmount = lotAmount.Add(l.Amount)
		rungs[i] = Rung{
			LevelPrice:  l.Price,
			LevelAmount: l.Amount,
			LotPrice:    lotPrice,
			LotAmount:   lotAmount,
		}
	}
	return rungs
}
