// Package orderbook prices trades against venues that publish a limit order book.
// Every venue contributes a Fetcher; Source turns the fetched book into a
// ladder and walks it.
package orderbook

import (
	"context"
	"fmt"
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
	"github.com/perich/ethereum-dex-prices-service/internal/circuitbreaker"
	"github.com/perich/ethereum-dex-prices-service/internal/httpclient"
	"github.com/perich/ethereum-dex-prices-service/internal/logger"
	"github.com/perich/ethereum-dex-prices-service/internal/ratelimit"
)

const (
	tracerName = "orderbook"
	meterName  = "orderbook"

	requestTimeout = 3 * time.Second
	userAgent      = "ethereum-dex-prices-service"
)

var _ app.QuoteSource = (*Source)(nil)

// Snapshot is what a venue returned for one symbol.
// A nil Book means the venue does not list the pair.
type Snapshot struct {
	Book *domain.Book
	// Inverted is set when the venue lists the pair as ETH priced in the token.
	Inverted bool
}

// Fetcher retrieves a raw book from one venue.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (Snapshot, error)
}

type sourceMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteErrors  metric.Int64Counter
	quoteLatency metric.Float64Histogram
}

// Source adapts a Fetcher to app.QuoteSource.
type Source struct {
	name    string
	fetcher Fetcher
	cb      *circuitbreaker.CircuitBreaker[Snapshot]
	logger  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *sourceMetrics
	attrs   metric.MeasurementOption
}

// NewSource wraps fetcher under the venue name.
func NewSource(name string, fetcher Fetcher, log logger.LoggerInterface) (*Source, error) {
	s := &Source{
		name:    name,
		fetcher: fetcher,
		cb:      circuitbreaker.New[Snapshot](circuitbreaker.DefaultConfig("orderbook-" + name)),
		logger:  log,
		tracer:  otel.Tracer(tracerName),
		attrs:   metric.WithAttributes(attribute.String("venue", name)),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return s, nil
}

func (s *Source) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &sourceMetrics{}

	s.metrics.quotesTotal, err = meter.Int64Counter(
		"orderbook_quotes_total",
		metric.WithDescription("Total order book quote requests"),
	)
	if err != nil {
		return err
	}

	s.metrics.quoteErrors, err = meter.Int64Counter(
		"orderbook_quote_errors_total",
		metric.WithDescription("Order book quotes that produced no price"),
	)
	if err != nil {
		return err
	}

	s.metrics.quoteLatency, err = meter.Float64Histogram(
		"orderbook_quote_latency_ms",
		metric.WithDescription("Order book quote latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// Name returns the venue name.
func (s *Source) Name() string {
	return s.name
}

// Ladder fetches the venue's book for symbol and normalises it.
func (s *Source) Ladder(ctx context.Context, symbol string) (domain.Ladder, error) {
	snap, err := s.cb.Execute(func() (Snapshot, error) {
		return s.fetcher.Fetch(ctx, symbol)
	})
	if err != nil {
		if apperror.HasCode(err, apperror.CodeTokenUnavailable) || apperror.HasCode(err, apperror.CodeUpstreamError) {
			return domain.Ladder{}, err
		}
		return domain.Ladder{}, apperror.New(apperror.CodeUpstreamError,
			apperror.WithCause(err), apperror.WithContext(s.name))
	}
	return domain.Normalize(snap.Book, snap.Inverted)
}

// ComputePrice walks the bids for a sell and the asks for a buy.
func (s *Source) ComputePrice(ctx context.Context, symbol string, amount decimal.Decimal, isSell bool) domain.QuoteResult {
	ctx, span := s.tracer.Start(ctx, "orderbook.compute_price",
		trace.WithAttributes(
			attribute.String("venue", s.name),
			attribute.String("symbol", symbol),
			attribute.String("amount", amount.String()),
			attribute.Bool("sell", isSell),
		),
	)
	defer span.End()

	start := time.Now()
	s.metrics.quotesTotal.Add(ctx, 1, s.attrs)

	fill, err := s.price(ctx, symbol, amount, isSell)
	s.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()), s.attrs)

	if err != nil {
		s.metrics.quoteErrors.Add(ctx, 1, s.attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug(ctx, "order book quote failed",
			append([]any{"venue", s.name, "symbol", symbol}, apperror.LogFields(err)...)...,
		)
		return domain.FailedQuoteFromError(s.name, symbol, amount, err)
	}

	span.SetAttributes(
		attribute.String("avg_price", fill.AvgPrice.String()),
		attribute.String("total_price", fill.TotalPrice.String()),
	)
	span.SetStatus(codes.Ok, "priced")
	return domain.NewQuote(s.name, symbol, amount, fill.TotalPrice)
}

func (s *Source) price(ctx context.Context, symbol string, amount decimal.Decimal, isSell bool) (domain.Fill, error) {
	ladder, err := s.Ladder(ctx, symbol)
	if err != nil {
		return domain.Fill{}, err
	}
	return domain.Price(ladder.Side(isSell), amount)
}

// NewClient builds the REST client a venue fetcher talks through.
func NewClient(name, baseURL string, limiter *ratelimit.Limiter) (httpclient.Client, error) {
	return httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(name),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(requestTimeout),
		httpclient.WithRateLimiter(limiter),
		httpclient.WithHeaders(map[string]string{"User-Agent": userAgent}),
	)
}

func get(ctx context.Context, c httpclient.Client, path string, out any) error {
	_, err := c.NewRequestWithOptions(
		httpclient.WithResponseErrorHandler(httpclient.StatusError),
		httpclient.WithLabels(httpclient.NewLabel("endpoint", endpoint(path))),
	).
		SetResult(out).
		Get(ctx, path)
	return err
}

// endpoint keeps the first path segment so symbols and addresses stay out of
// metric labels.
func endpoint(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(path, "/?"); i >= 0 {
		path = path[:i]
	}
	return path
}
