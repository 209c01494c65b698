package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/perich/ethereum-dex-prices-service/internal/apperror"
)

// Direction is the side of the trade from the requester's point of view.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// ParseDirection accepts BUY or SELL in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case DirectionBuy:
		return DirectionBuy, nil
	case DirectionSell:
		return DirectionSell, nil
	}
	return "", apperror.New(apperror.CodeInvalidDirection,
		apperror.WithMessage(fmt.Sprintf("must specify BUY or SELL. you specified %q", s)))
}

// Trade sizes outside these bounds are rejected before any ladder is walked.
const (
	MaxTradeDecimals      = 36
	MaxTradeIntegerDigits = 30
)

// ValidateTradeSize rejects non-positive amounts and amounts whose scale
// would make decimal arithmetic blow up.
func ValidateTradeSize(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.New(apperror.CodeInvalidTradeSize)
	}
	if amount.Exponent() < -MaxTradeDecimals {
		return apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithMessage(fmt.Sprintf("amount must have at most %d decimal places", MaxTradeDecimals)))
	}
	if int64(amount.NumDigits())+int64(amount.Exponent()) > MaxTradeIntegerDigits {
		return apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithMessage(fmt.Sprintf("amount must have at most %d integer digits", MaxTradeIntegerDigits)))
	}
	return nil
}

// IsSell reports whether the requester is selling the token.
func (d Direction) IsSell() bool {
	return d == DirectionSell
}

// QuoteResult is one venue's answer for a trade. Either both prices are set
// or Error is non-empty.
type QuoteResult struct {
	ExchangeName string
	TotalPrice   decimal.NullDecimal
	AvgPrice     decimal.NullDecimal
	TokenAmount  decimal.Decimal
	TokenSymbol  string
	Timestamp    int64 // epoch ms
	Error        string
}

// NewQuote builds a priced result. The average is total / amount.
func NewQuote(exchange, symbol string, amount, total decimal.Decimal) QuoteResult {
	avg := decimal.Zero
	if !amount.IsZero() {
		avg = total.Div(amount)
	}
	return QuoteResult{
		ExchangeName: exchange,
		TotalPrice:   decimal.NewNullDecimal(total),
		AvgPrice:     decimal.NewNullDecimal(avg),
		TokenAmount:  amount,
		TokenSymbol:  symbol,
		Timestamp:    time.Now().UnixMilli(),
	}
}

// NewFailedQuote builds an errored result.
func NewFailedQuote(exchange, symbol string, amount decimal.Decimal, msg string) QuoteResult {
	return QuoteResult{
		ExchangeName: exchange,
		TokenAmount:  amount,
		TokenSymbol:  symbol,
		Timestamp:    time.Now().UnixMilli(),
		Error:        msg,
	}
}

// FailedQuoteFromError maps err to the user-facing message for the venue.
func FailedQuoteFromError(exchange, symbol string, amount decimal.Decimal, err error) QuoteResult {
	return NewFailedQuote(exchange, symbol, amount, ErrorMessage(exchange, symbol, amount, err))
}

// NotAvailable reports that exchange does not trade symbol against ETH.
func NotAvailable(exchange, symbol string) error {
	return apperror.New(apperror.CodeTokenUnavailable,
		apperror.WithMessage(fmt.Sprintf("%s is not available on %s", symbol, exchange)))
}

// ErrorMessage renders err the way quote consumers expect to read it.
// A message set explicitly where the error was raised wins over the stock
// wording for its code.
func ErrorMessage(exchange, symbol string, amount decimal.Decimal, err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != apperror.DefaultMessage(appErr.Code) {
		return appErr.Message
	}

	switch {
	case errors.Is(err, ErrInsufficientLiquidity):
		return fmt.Sprintf("not enough liquidity on %s for %s %s", exchange, amount.String(), symbol)
	case apperror.HasCode(err, apperror.CodeTokenUnavailable),
		apperror.HasCode(err, apperror.CodeUpstreamError),
		apperror.HasCode(err, apperror.CodeInvalidOrderbook),
		apperror.HasCode(err, apperror.CodeCircuitOpen),
		apperror.HasCode(err, apperror.CodeCircuitHalfOpen):
		return fmt.Sprintf("no price data found on %s for %s", exchange, symbol)
	}
	return apperror.MessageOf(err)
}

// OK reports whether the venue produced a price.
func (q QuoteResult) OK() bool {
	return q.Error == "" && q.TotalPrice.Valid
}

// WithFee folds a proportional venue fee into the total. Sellers receive less
// and buyers pay more. Errored results are returned unchanged.
func (q QuoteResult) WithFee(fee decimal.Decimal, dir Direction) QuoteResult {
	if !q.OK() || fee.IsZero() {
		return q
	}

	total := q.TotalPrice.Decimal
	if dir.IsSell() {
		total = total.Sub(total.Mul(fee))
	} else {
		total = total.Add(total.Mul(fee))
	}

	q.TotalPrice = decimal.NewNullDecimal(total)
	if !q.TokenAmount.IsZero() {
		q.AvgPrice = decimal.NewNullDecimal(total.Div(q.TokenAmount))
	}
	return q
}

// SortQuotes ranks results best first: cheapest total for a buy, highest total
// for a sell. Unpriced results sink to the end. Ties keep their input order.
func SortQuotes(results []QuoteResult, dir Direction) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.OK() != b.OK() {
			return a.OK()
		}
		if !a.OK() {
			return false
		}
		if dir.IsSell() {
			return a.TotalPrice.Decimal.GreaterThan(b.TotalPrice.Decimal)
		}
		return a.TotalPrice.Decimal.LessThan(b.TotalPrice.Decimal)
	})
}

type quoteJSON struct {
	ExchangeName string              `json:"exchangeName"`
	TotalPrice   decimal.NullDecimal `json:"totalPrice"`
	TokenAmount  decimal.Decimal     `json:"tokenAmount"`
	TokenSymbol  string              `json:"tokenSymbol"`
	AvgPrice     decimal.NullDecimal `json:"avgPrice"`
	Timestamp    int64               `json:"timestamp"`
	Error        *string             `json:"error"`
}

// MarshalJSON encodes missing prices and a missing error as null.
func (q QuoteResult) MarshalJSON() ([]byte, error) {
	out := quoteJSON{
		ExchangeName: q.ExchangeName,
		TotalPrice:   q.TotalPrice,
		TokenAmount:  q.TokenAmount,
		TokenSymbol:  q.TokenSymbol,
		AvgPrice:     q.AvgPrice,
		Timestamp:    q.Timestamp,
	}
	if q.Error != "" {
		out.Error = &q.Error
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (q *QuoteResult) UnmarshalJSON(data []byte) error {
	var in quoteJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*q = QuoteResult{
		ExchangeName: in.ExchangeName,
		TotalPrice:   in.TotalPrice,
		AvgPrice:     in.AvgPrice,
		TokenAmount:  in.TokenAmount,
		TokenSymbol:  in.TokenSymbol,
		Timestamp:    in.Timestamp,
	}
	if in.Error != nil {
		q.Error = *in.Error
	}
	return nil
}
