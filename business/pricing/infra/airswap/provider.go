// Package airswap prices trades by asking makers on the AirSwap peer network
// for signed orders.
package airswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/app"
	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
	"github.com/perich/ethereum-dex-prices-service/internal/apperror"
	"github.com/perich/ethereum-dex-prices-service/internal/asset"
	"github.com/perich/ethereum-dex-prices-service/internal/httpclient"
	"github.com/perich/ethereum-dex-prices-service/internal/logger"
	"github.com/perich/ethereum-dex-prices-service/internal/peer"
)

const (
	tracerName = "airswap"
	meterName  = "airswap"

	// Name is the venue name on results.
	Name = "AirSwap"
)

var _ app.QuoteSource = (*Provider)(nil)

// Network is the part of peer.Session the provider uses.
type Network interface {
	peer.Caller
	Connect(ctx context.Context) error
}

var _ Network = (*peer.Session)(nil)

type providerMetrics struct {
	quotesTotal  metric.Int64Counter
	noResponders metric.Int64Counter
	quoteLatency metric.Float64Histogram
}

// Provider quotes makers reachable over a shared peer session.
type Provider struct {
	network Network
	tokens  *tokenDirectory
	logger  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *providerMetrics
}

// NewProvider creates an AirSwap provider. metadataURL serves the token list;
// registry answers when it cannot.
func NewProvider(network Network, client httpclient.Client, metadataURL string, registry *asset.Registry, log logger.LoggerInterface) (*Provider, error) {
	if registry == nil {
		registry = asset.DefaultRegistry()
	}
	p := &Provider{
		network: network,
		tokens:  &tokenDirectory{client: client, url: metadataURL, registry: registry},
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}
	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return p, nil
}

func (p *Provider) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &providerMetrics{}

	p.metrics.quotesTotal, err = meter.Int64Counter(
		"airswap_quotes_total",
		metric.WithDescription("Total AirSwap quote requests"),
	)
	if err != nil {
		return err
	}

	p.metrics.noResponders, err = meter.Int64Counter(
		"airswap_no_responders_total",
		metric.WithDescription("Quotes where no maker returned a usable order"),
	)
	if err != nil {
		return err
	}

	p.metrics.quoteLatency, err = meter.Float64Histogram(
		"airswap_quote_latency_ms",
		metric.WithDescription("AirSwap quote latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// Name returns the venue name.
func (p *Provider) Name() string {
	return Name
}

// ComputePrice collects orders from every maker advertising the pair and
// prices the one giving the most maker tokens.
func (p *Provider) ComputePrice(ctx context.Context, symbol string, amount decimal.Decimal, isSell bool) domain.QuoteResult {
	ctx, span := p.tracer.Start(ctx, "airswap.compute_price",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("amount", amount.String()),
			attribute.Bool("sell", isSell),
		),
	)
	defer span.End()

	start := time.Now()
	p.metrics.quotesTotal.Add(ctx, 1)

	result, err := p.quote(ctx, symbol, amount, isSell)
	p.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()))

	if err != nil {
		if apperror.HasCode(err, apperror.CodeNoResponders) {
			p.metrics.noResponders.Add(ctx, 1)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Debug(ctx, "airswap quote failed", "symbol", symbol, "error", err.Error())
		return domain.FailedQuoteFromError(Name, symbol, amount, err)
	}

	span.SetStatus(codes.Ok, "quote computed")
	return result
}

func (p *Provider) quote(ctx context.Context, symbol string, amount decimal.Decimal, isSell bool) (domain.QuoteResult, error) {
	token, ok := p.tokens.lookup(ctx, symbol)
	if !ok || token.IsNative() {
		return domain.QuoteResult{}, domain.NotAvailable(Name, symbol)
	}

	baseUnits, err := asset.ParseUnits(amount, token.Decimals())
	if err != nil {
		return domain.QuoteResult{}, apperror.New(apperror.CodeInvalidTradeSize, apperror.WithCause(err),
			apperror.WithMessage(fmt.Sprintf("%s supports at most %d decimals", token.Symbol(), token.Decimals())))
	}

	if err := p.network.Connect(ctx); err != nil {
		return domain.QuoteResult{}, err
	}

	tokenAddr := hexAddress(token.Address().Hex())
	weth := hexAddress(asset.AddrWETH.Hex())

	// A seller offers tokens for WETH; a buyer wants tokens for ETH.
	var intents []peer.Intent
	if isSell {
		intents, err = peer.FindIntents(ctx, p.network, []string{weth}, []string{tokenAddr})
	} else {
		intents, err = peer.FindIntents(ctx, p.network, []string{tokenAddr}, []string{peer.IndexerAddress})
	}
	if err != nil {
		return domain.QuoteResult{}, err
	}
	if len(intents) == 0 {
		return domain.QuoteResult{}, domain.NotAvailable(Name, symbol)
	}

	var outcomes []peer.Outcome[*peer.Order]
	if isSell {
		outcomes, err = peer.GetOrders(ctx, p.network, intents, nil, baseUnits)
	} else {
		outcomes, err = peer.GetOrders(ctx, p.network, intents, baseUnits, nil)
	}
	if err != nil {
		return domain.QuoteResult{}, err
	}

	best, ok := bestOrder(outcomes)
	if !ok {
		return domain.QuoteResult{}, apperror.New(apperror.CodeNoResponders)
	}

	ethSide, tokenSide := best.taker, best.maker
	if isSell {
		ethSide, tokenSide = best.maker, best.taker
	}
	total := asset.FormatUnits(ethSide, 18)
	tokenAmount := asset.FormatUnits(tokenSide, token.Decimals())

	return domain.NewQuote(Name, symbol, tokenAmount, total), nil
}

type pricedOrder struct {
	order *peer.Order
	maker *big.Int
	taker *big.Int
}

// bestOrder picks the order offering the largest maker amount. Failed calls
// and orders missing either amount are skipped.
func bestOrder(outcomes []peer.Outcome[*peer.Order]) (pricedOrder, bool) {
	var best pricedOrder
	found := false
	for _, o := range outcomes {
		if o.Err != nil || o.Value == nil {
			continue
		}
		maker, okM := asset.ParseBaseUnits(o.Value.MakerAmount)
		taker, okT := asset.ParseBaseUnits(o.Value.TakerAmount)
		if !okM || !okT || maker.Sign() <= 0 || taker.Sign() <= 0 {
			continue
		}
		if !found || maker.Cmp(best.maker) > 0 {
			best = pricedOrder{order: o.Value, maker: maker, taker: taker}
			found = true
		}
	}
	return best, found
}

func hexAddress(s string) string {
	return strings.ToLower(s)
}
