package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
	"github.com/perich/ethereum-dex-prices-service/internal/apperror"
	"github.com/perich/ethereum-dex-prices-service/internal/logger"
)

const (
	tracerName = "pricing"
	meterName  = "pricing"
)

// AggregatorConfig controls fan-out and fee adjustment.
type AggregatorConfig struct {
	SourceTimeout  time.Duration
	MaxConcurrency int
	// Fees maps lower-cased venue names to a proportional fee.
	Fees map[string]decimal.Decimal
}

// DefaultAggregatorConfig returns the defaults used when config is absent.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		SourceTimeout:  10 * time.Second,
		MaxConcurrency: 16,
		Fees:           map[string]decimal.Decimal{"ddex": decimal.RequireFromString("0.003")},
	}
}

type aggregatorMetrics struct {
	requests      metric.Int64Counter
	sourceLatency metric.Float64Histogram
	sourceErrors  metric.Int64Counter
}

// Aggregator asks every registered source for a price and ranks the answers.
type Aggregator struct {
	cfg    AggregatorConfig
	logger logger.LoggerInterface

	mu      sync.RWMutex
	sources []QuoteSource

	tracer  trace.Tracer
	metrics *aggregatorMetrics
}

// NewAggregator creates an aggregator over sources.
func NewAggregator(cfg AggregatorConfig, log logger.LoggerInterface, sources ...QuoteSource) (*Aggregator, error) {
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = DefaultAggregatorConfig().SourceTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultAggregatorConfig().MaxConcurrency
	}

	a := &Aggregator{
		cfg:     cfg,
		logger:  log,
		sources: sources,
		tracer:  otel.Tracer(tracerName),
	}
	if err := a.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return a, nil
}

func (a *Aggregator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	a.metrics = &aggregatorMetrics{}

	a.metrics.requests, err = meter.Int64Counter(
		"pricing_aggregations_total",
		metric.WithDescription("Total aggregation requests"),
	)
	if err != nil {
		return err
	}

	a.metrics.sourceLatency, err = meter.Float64Histogram(
		"pricing_source_latency_ms",
		metric.WithDescription("Per-source quote latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	a.metrics.sourceErrors, err = meter.Int64Counter(
		"pricing_source_errors_total",
		metric.WithDescription("Quotes that came back with an error"),
	)
	return err
}

// Register adds a source.
func (a *Aggregator) Register(src QuoteSource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources = append(a.sources, src)
}

// Sources returns the registered venue names in registration order.
func (a *Aggregator) Sources() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.sources))
	for i, s := range a.sources {
		names[i] = s.Name()
	}
	return names
}

// Aggregate prices amount of symbol on every source and returns the results
// best first. Only invalid input is reported as an error; venue failures are
// part of the results.
func (a *Aggregator) Aggregate(ctx context.Context, symbol string, amount decimal.Decimal, dir domain.Direction) ([]domain.QuoteResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, apperror.New(apperror.CodeRequiredField, apperror.WithContext("symbol"))
	}
	if err := domain.ValidateTradeSize(amount); err != nil {
		return nil, err
	}
	if dir != domain.DirectionBuy && dir != domain.DirectionSell {
		_, err := domain.ParseDirection(string(dir))
		return nil, err
	}

	ctx, span := a.tracer.Start(ctx, "pricing.aggregate",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("amount", amount.String()),
			attribute.String("direction", string(dir)),
		),
	)
	defer span.End()

	a.metrics.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", string(dir))))

	a.mu.RLock()
	sources := append([]QuoteSource(nil), a.sources...)
	a.mu.RUnlock()

	results := make([]domain.QuoteResult, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxConcurrency)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = a.quote(gctx, src, symbol, amount, dir)
			return nil
		})
	}
	_ = g.Wait()

	for i := range results {
		fee, ok := a.cfg.Fees[strings.ToLower(results[i].ExchangeName)]
		if ok {
			results[i] = results[i].WithFee(fee, dir)
		}
	}
	domain.SortQuotes(results, dir)

	priced := 0
	for _, r := range results {
		if r.OK() {
			priced++
		}
	}
	span.SetAttributes(attribute.Int("priced", priced), attribute.Int("sources", len(results)))
	a.logger.Debug(ctx, "aggregated quotes",
		"symbol", symbol,
		"amount", amount.String(),
		"direction", dir,
		"priced", priced,
		"sources", len(results),
	)

	return results, nil
}

// quote runs one source under its own deadline. A panic or an overrun
// becomes an errored result.
func (a *Aggregator) quote(ctx context.Context, src QuoteSource, symbol string, amount decimal.Decimal, dir domain.Direction) domain.QuoteResult {
	name := src.Name()
	ctx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan domain.QuoteResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error(ctx, "quote source panicked", "source", name, "panic", r)
				done <- domain.NewFailedQuote(name, symbol, amount,
					fmt.Sprintf("internal error on %s", name))
			}
		}()
		done <- src.ComputePrice(ctx, symbol, amount, dir.IsSell())
	}()

	var res domain.QuoteResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = domain.NewFailedQuote(name, symbol, amount,
			fmt.Sprintf("%s did not respond within %s", name, a.cfg.SourceTimeout))
	}

	if res.ExchangeName == "" {
		res.ExchangeName = name
	}

	attrs := metric.WithAttributes(attribute.String("source", name))
	a.metrics.sourceLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if !res.OK() {
		a.metrics.sourceErrors.Add(ctx, 1, attrs)
		a.logger.Debug(ctx, "quote source failed", "source", name, "error", res.Error)
	}
	return res
}
