package peer

import (
	"context"
	"fmt"
	"math/big"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/perich/ethereum-dex-prices-service/internal/apperror"
)

// IndexerAddress is the well-known receiver that answers intent queries.
const IndexerAddress = "0x0000000000000000000000000000000000000000"

// Caller is the part of Session the helpers below need.
type Caller interface {
	Address() string
	Call(ctx context.Context, receiver, method string, params any) (json.RawMessage, error)
}

var _ Caller = (*Session)(nil)

// Outcome is one item's result in a FanOut batch.
type Outcome[T any] struct {
	Value T
	Err   error
}

// FanOut runs fn for every item concurrently and waits for all of them.
// A failing item never cancels its siblings.
func FanOut[I, T any](ctx context.Context, items []I, fn func(context.Context, I) (T, error)) []Outcome[T] {
	out := make([]Outcome[T], len(items))

	var g errgroup.Group
	for i, item := range items {
		g.Go(func() error {
			v, err := fn(ctx, item)
			out[i] = Outcome[T]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Intent advertises that a maker trades a token pair.
type Intent struct {
	Address    string `json:"address"`
	MakerToken string `json:"makerToken"`
	TakerToken string `json:"takerToken"`
	Role       string `json:"role,omitempty"`
}

// Order is a maker's signed answer to getOrder. Amounts are base-unit integers.
type Order struct {
	MakerAddress string `json:"makerAddress"`
	MakerToken   string `json:"makerToken"`
	MakerAmount  string `json:"makerAmount"`
	TakerAddress string `json:"takerAddress"`
	TakerToken   string `json:"takerToken"`
	TakerAmount  string `json:"takerAmount"`
}

type findIntentsParams struct {
	MakerTokens []string `json:"makerTokens"`
	TakerTokens []string `json:"takerTokens"`
	Role        string   `json:"role"`
}

type getOrderParams struct {
	MakerToken   string `json:"makerToken"`
	TakerToken   string `json:"takerToken"`
	TakerAddress string `json:"takerAddress"`
	MakerAmount  string `json:"makerAmount,omitempty"`
	TakerAmount  string `json:"takerAmount,omitempty"`
}

// FindIntents asks the indexer which makers trade the given tokens.
func FindIntents(ctx context.Context, c Caller, makerTokens, takerTokens []string) ([]Intent, error) {
	if len(makerTokens) == 0 || len(takerTokens) == 0 {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("missing makerTokens or takerTokens"))
	}

	raw, err := c.Call(ctx, IndexerAddress, "findIntents", findIntentsParams{
		MakerTokens: makerTokens,
		TakerTokens: takerTokens,
		Role:        "maker",
	})
	if err != nil {
		return nil, err
	}

	var intents []Intent
	if len(raw) == 0 || string(raw) == "null" {
		return intents, nil
	}
	if err := json.Unmarshal(raw, &intents); err != nil {
		return nil, apperror.New(apperror.CodeUpstreamError,
			apperror.WithCause(err), apperror.WithContext("findIntents result"))
	}
	return intents, nil
}

// GetOrders requests an order from every intent's maker. Exactly one of
// makerAmount and takerAmount must be set. Per-maker failures are kept in
// the outcomes.
func GetOrders(ctx context.Context, c Caller, intents []Intent, makerAmount, takerAmount *big.Int) ([]Outcome[*Order], error) {
	if (makerAmount == nil) == (takerAmount == nil) {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("getOrders needs exactly one of makerAmount or takerAmount"))
	}

	return FanOut(ctx, intents, func(ctx context.Context, in Intent) (*Order, error) {
		params := getOrderParams{
			MakerToken:   in.MakerToken,
			TakerToken:   in.TakerToken,
			TakerAddress: c.Address(),
		}
		if makerAmount != nil {
			params.MakerAmount = makerAmount.String()
		} else {
			params.TakerAmount = takerAmount.String()
		}

		raw, err := c.Call(ctx, in.Address, "getOrder", params)
		if err != nil {
			return nil, err
		}
		var order Order
		if err := json.Unmarshal(raw, &order); err != nil {
			return nil, fmt.Errorf("decode order from %s: %w", in.Address, err)
		}
		return &order, nil
	}), nil
}

// FindIntents queries the indexer over this session.
func (s *Session) FindIntents(ctx context.Context, makerTokens, takerTokens []string) ([]Intent, error) {
	return FindIntents(ctx, s, makerTokens, takerTokens)
}

// GetOrders fans getOrder out over this session.
func (s *Session) GetOrders(ctx context.Context, intents []Intent, makerAmount, takerAmount *big.Int) ([]Outcome[*Order], error) {
	return GetOrders(ctx, s, intents, makerAmount, takerAmount)
}
