// Package kyber prices trades with the Kyber Network rate API.
package kyber

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/app"
	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
	"github.com/perich/ethereum-dex-prices-service/internal/apperror"
	"github.com/perich/ethereum-dex-prices-service/internal/circuitbreaker"
	"github.com/perich/ethereum-dex-prices-service/internal/httpclient"
	"github.com/perich/ethereum-dex-prices-service/internal/logger"
)

const (
	tracerName = "kyber"

	// Name is the venue name on results.
	Name = "Kyber"
)

var _ app.QuoteSource = (*Provider)(nil)

// Currency is one entry of the /currencies listing.
type Currency struct {
	Symbol   string `json:"symbol"`
	ID       string `json:"id"`
	Decimals int    `json:"decimals"`
}

type currenciesResponse struct {
	Error  bool       `json:"error"`
	Reason string     `json:"reason"`
	Data   []Currency `json:"data"`
}

// Rate is one entry of a buy_rate or sell_rate answer. Quantities are whole units.
type Rate struct {
	SrcQty []decimal.Decimal `json:"src_qty"`
	DstQty []decimal.Decimal `json:"dst_qty"`
}

type rateResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
	Data   []Rate `json:"data"`
}

// Provider quotes Kyber reserves.
type Provider struct {
	client httpclient.Client
	cb     *circuitbreaker.CircuitBreaker[Rate]
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewProvider creates a Kyber provider on top of a REST client rooted at the API base.
func NewProvider(client httpclient.Client, log logger.LoggerInterface) *Provider {
	return &Provider{
		client: client,
		cb:     circuitbreaker.New[Rate](circuitbreaker.DefaultConfig("kyber-api")),
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
}

// Name returns the venue name.
func (p *Provider) Name() string {
	return Name
}

// ComputePrice asks Kyber what amount tokens cost (buy) or fetch (sell) in ETH.
func (p *Provider) ComputePrice(ctx context.Context, symbol string, amount decimal.Decimal, isSell bool) domain.QuoteResult {
	ctx, span := p.tracer.Start(ctx, "kyber.compute_price",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("amount", amount.String()),
			attribute.Bool("sell", isSell),
		),
	)
	defer span.End()

	total, err := p.price(ctx, symbol, amount, isSell)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Debug(ctx, "kyber quote failed", "symbol", symbol, "error", err.Error())
		return domain.FailedQuoteFromError(Name, symbol, amount, err)
	}

	span.SetStatus(codes.Ok, "quote computed")
	return domain.NewQuote(Name, symbol, amount, total)
}

func (p *Provider) price(ctx context.Context, symbol string, amount decimal.Decimal, isSell bool) (decimal.Decimal, error) {
	currencies, err := p.Currencies(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	var id string
	for _, c := range currencies {
		if strings.EqualFold(c.Symbol, symbol) {
			id = c.ID
			break
		}
	}
	if id == "" {
		return decimal.Zero, domain.NotAvailable(Name, symbol)
	}

	path := "buy_rate"
	if isSell {
		path = "sell_rate"
	}
	rate, err := p.cb.Execute(func() (Rate, error) {
		return p.rate(ctx, path, id, amount)
	})
	if err != nil {
		return decimal.Zero, err
	}

	// Buying spends src ETH for dst tokens; selling spends src tokens for dst ETH.
	if isSell {
		return rate.DstQty[0], nil
	}
	return rate.SrcQty[0], nil
}

// Currencies lists the tokens Kyber trades.
func (p *Provider) Currencies(ctx context.Context) ([]Currency, error) {
	var out currenciesResponse
	_, err := p.client.NewRequestWithOptions(httpclient.WithResponseErrorHandler(httpclient.StatusError)).
		SetResult(&out).
		Get(ctx, "currencies")
	if err != nil {
		return nil, err
	}
	if out.Error {
		return nil, apperror.New(apperror.CodeUpstreamError,
			apperror.WithContext(fmt.Sprintf("error fetching data from %s: %s", Name, out.Reason)))
	}
	return out.Data, nil
}

func (p *Provider) rate(ctx context.Context, path, id string, amount decimal.Decimal) (Rate, error) {
	var out rateResponse
	_, err := p.client.NewRequestWithOptions(httpclient.WithResponseErrorHandler(httpclient.StatusError)).
		SetQueryParam("id", id).
		SetQueryParam("qty", amount.String()).
		SetResult(&out).
		Get(ctx, path)
	if err != nil {
		return Rate{}, err
	}
	if out.Error || len(out.Data) == 0 || len(out.Data[0].SrcQty) == 0 || len(out.Data[0].DstQty) == 0 {
		return Rate{}, apperror.New(apperror.CodeUpstreamError,
			apperror.WithContext(fmt.Sprintf("error fetching %s from %s: %s", path, Name, out.Reason)))
	}
	return out.Data[0], nil
}
