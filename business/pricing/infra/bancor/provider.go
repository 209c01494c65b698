// Package bancor prices token purchases with the Bancor currencies API.
package bancor

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
	"github.com/perich/ethereum-dex-prices-service/internal/asset"
	"github.com/perich/ethereum-dex-prices-service/internal/circuitbreaker"
	"github.com/perich/ethereum-dex-prices-service/internal/httpclient"
	"github.com/perich/ethereum-dex-prices-service/internal/logger"
)

const (
	tracerName = "bancor"

	// Name is the venue name on results.
	Name = "Bancor"

	// ethCurrencyID is Bancor's id for ETH.
	ethCurrencyID = "5937d635231e97001f744267"
)

var _ app.QuoteSource = (*Provider)(nil)

// Currency is one page entry of the token listing.
type Currency struct {
	ID   string `json:"_id"`
	Code string `json:"code"`
}

type tokensResponse struct {
	Data struct {
		Currencies struct {
			Page []Currency `json:"page"`
		} `json:"currencies"`
	} `json:"data"`
}

type pairsResponse struct {
	Data map[string]any `json:"data"`
}

type valueResponse struct {
	Data string `json:"data"`
}

// Provider quotes Bancor's ETH conversion paths.
type Provider struct {
	client   httpclient.Client
	registry *asset.Registry
	cb       *circuitbreaker.CircuitBreaker[decimal.Decimal]
	logger   logger.LoggerInterface
	tracer   trace.Tracer
}

// NewProvider creates a Bancor provider on top of a REST client rooted at the API base.
// The registry supplies token decimals for the amount sent upstream.
func NewProvider(client httpclient.Client, registry *asset.Registry, log logger.LoggerInterface) *Provider {
	if registry == nil {
		registry = asset.DefaultRegistry()
	}
	return &Provider{
		client:   client,
		registry: registry,
		cb:       circuitbreaker.New[decimal.Decimal](circuitbreaker.DefaultConfig("bancor-api")),
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
}

// Name returns the venue name.
func (p *Provider) Name() string {
	return Name
}

// ComputePrice returns the ETH needed to receive amount tokens. Bancor only
// publishes the buy-side conversion, so sells are reported as unsupported.
func (p *Provider) ComputePrice(ctx context.Context, symbol string, amount decimal.Decimal, isSell bool) domain.QuoteResult {
	ctx, span := p.tracer.Start(ctx, "bancor.compute_price",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("amount", amount.String()),
			attribute.Bool("sell", isSell),
		),
	)
	defer span.End()

	if isSell {
		span.SetStatus(codes.Error, "sell unsupported")
		return domain.NewFailedQuote(Name, symbol, amount, "Bancor does not quote sells")
	}

	total, err := p.price(ctx, symbol, amount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Debug(ctx, "bancor quote failed", "symbol", symbol, "error", err.Error())
		return domain.FailedQuoteFromError(Name, symbol, amount, err)
	}

	span.SetStatus(codes.Ok, "quote computed")
	return domain.NewQuote(Name, symbol, amount, total)
}

func (p *Provider) price(ctx context.Context, symbol string, amount decimal.Decimal) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)

	var pairs pairsResponse
	if err := p.get(ctx, "currencies/convertiblePairs", nil, &pairs); err != nil {
		return decimal.Zero, err
	}
	if pairs.Data == nil {
		return decimal.Zero, apperror.New(apperror.CodeUpstreamError, apperror.WithContext("empty convertiblePairs"))
	}
	if _, ok := pairs.Data[symbol]; !ok {
		return decimal.Zero, domain.NotAvailable(Name, symbol)
	}

	id, err := p.currencyID(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	decimals := uint8(18)
	if t, ok := p.registry.BySymbol(symbol); ok {
		decimals = t.Decimals()
	}
	baseUnits, err := asset.ParseUnits(amount, decimals)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeInvalidTradeSize, apperror.WithCause(err),
			apperror.WithMessage(fmt.Sprintf("%s supports at most %d decimals", symbol, decimals)))
	}

	return p.cb.Execute(func() (decimal.Decimal, error) {
		var out valueResponse
		params := map[string]string{"toCurrencyId": id, "toAmount": baseUnits.String()}
		if err := p.get(ctx, "currencies/"+ethCurrencyID+"/value", params, &out); err != nil {
			return decimal.Zero, err
		}
		wei, ok := asset.ParseBaseUnits(out.Data)
		if !ok {
			return decimal.Zero, apperror.New(apperror.CodeUpstreamError,
				apperror.WithContext("unparseable value "+out.Data))
		}
		return asset.FormatUnits(wei, 18), nil
	})
}

func (p *Provider) currencyID(ctx context.Context, symbol string) (string, error) {
	var out tokensResponse
	params := map[string]string{
		"limit":            "100",
		"skip":             "0",
		"fromCurrencyCode": "ETH",
		"includeTotal":     "true",
		"orderBy":          "liquidityDepth",
		"sortOrder":        "desc",
	}
	if err := p.get(ctx, "currencies/tokens", params, &out); err != nil {
		return "", err
	}
	for _, c := range out.Data.Currencies.Page {
		if c.Code == symbol {
			return c.ID, nil
		}
	}
	return "", domain.NotAvailable(Name, symbol)
}

func (p *Provider) get(ctx context.Context, path string, params map[string]string, out any) error {
	req := p.client.NewRequestWithOptions(httpclient.WithResponseErrorHandler(httpclient.StatusError)).
		SetResult(out)
	if params != nil {
		req = req.SetQueryParams(params)
	}
	_, err := req.Get(ctx, path)
	return err
}
