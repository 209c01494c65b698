// Package uniswap prices trades against Uniswap v1 constant-product pools.
package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
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
	"github.com/perich/ethereum-dex-prices-service/internal/circuitbreaker"
	"github.com/perich/ethereum-dex-prices-service/internal/config"
	"github.com/perich/ethereum-dex-prices-service/internal/logger"
)

const (
	tracerName = "uniswap"
	meterName  = "uniswap"

	// Name is the venue name on results.
	Name = "Uniswap"
)

// Ensure Provider implements QuoteSource.
var _ app.QuoteSource = (*Provider)(nil)

// ChainReader is the slice of ethclient.Client the provider needs.
type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// providerMetrics holds OTEL metric instruments.
type providerMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteLatency metric.Float64Histogram
	quoteErrors  metric.Int64Counter
}

// Provider reads pool reserves from chain and applies the v1 pricing curve.
type Provider struct {
	client     ChainReader
	factory    common.Address
	factoryABI abi.ABI
	erc20ABI   abi.ABI

	registry *asset.Registry
	logger   logger.LoggerInterface
	cb       *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	metrics *providerMetrics
}

// NewProvider creates a new Uniswap v1 provider.
func NewProvider(client ChainReader, cfg config.EthereumConfig, registry *asset.Registry, log logger.LoggerInterface) (*Provider, error) {
	factoryABI, err := abi.JSON(strings.NewReader(FactoryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}
	if registry == nil {
		registry = asset.DefaultRegistry()
	}

	p := &Provider{
		client:     client,
		factory:    cfg.UniswapFactoryHex(),
		factoryABI: factoryABI,
		erc20ABI:   erc20ABI,
		registry:   registry,
		logger:     log,
		cb:         circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("uniswap-node")),
		tracer:     otel.Tracer(tracerName),
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
		"uniswap_quotes_total",
		metric.WithDescription("Total quote requests"),
	)
	if err != nil {
		return err
	}

	p.metrics.quoteLatency, err = meter.Float64Histogram(
		"uniswap_quote_latency_ms",
		metric.WithDescription("Quote request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	p.metrics.quoteErrors, err = meter.Int64Counter(
		"uniswap_quote_errors_total",
		metric.WithDescription("Total quote errors"),
	)
	return err
}

// Name returns the venue name.
func (p *Provider) Name() string {
	return Name
}

// ComputePrice prices amount tokens against the token's v1 pool.
func (p *Provider) ComputePrice(ctx context.Context, symbol string, amount decimal.Decimal, isSell bool) domain.QuoteResult {
	ctx, span := p.tracer.Start(ctx, "uniswap.compute_price",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("amount", amount.String()),
			attribute.Bool("sell", isSell),
		),
	)
	defer span.End()

	start := time.Now()
	p.metrics.quotesTotal.Add(ctx, 1)

	total, err := p.price(ctx, symbol, amount, isSell)
	p.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()))

	if err != nil {
		p.metrics.quoteErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Debug(ctx, "uniswap quote failed", "symbol", symbol, "error", err.Error())
		return domain.FailedQuoteFromError(Name, symbol, amount, err)
	}

	span.SetAttributes(attribute.String("total_price", total.String()))
	span.SetStatus(codes.Ok, "quote computed")
	return domain.NewQuote(Name, symbol, amount, total)
}

func (p *Provider) price(ctx context.Context, symbol string, amount decimal.Decimal, isSell bool) (decimal.Decimal, error) {
	if strings.EqualFold(symbol, "BNB") {
		return decimal.Zero, apperror.New(apperror.CodeTokenUnavailable,
			apperror.WithMessage("BNB cannot be traded on Uniswap due to a bug in the token code as of solc 0.4.22"))
	}

	token, ok := p.registry.BySymbol(symbol)
	if !ok {
		return decimal.Zero, apperror.New(apperror.CodeUnknownToken,
			apperror.WithMessage(fmt.Sprintf("no token metadata available for %s, can't get decimals", symbol)))
	}

	reserves, err := p.Reserves(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	if reserves.ETH.IsZero() || reserves.Token.IsZero() {
		return decimal.Zero, apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithMessage(fmt.Sprintf("no liquidity available for %s", symbol)))
	}

	if isSell {
		return SellProceeds(amount, reserves), nil
	}
	return BuyCost(amount, reserves)
}

// Reserves returns the ETH and token balances of token's exchange contract.
func (p *Provider) Reserves(ctx context.Context, token *asset.Token) (Reserves, error) {
	exchange, err := p.exchangeFor(ctx, token.Address())
	if err != nil {
		return Reserves{}, err
	}
	if exchange == (common.Address{}) {
		return Reserves{}, apperror.New(apperror.CodeTokenUnavailable,
			apperror.WithMessage(fmt.Sprintf("no Uniswap market exists for %s", token.Symbol())))
	}

	ethBalance, err := p.ethBalance(ctx, exchange)
	if err != nil {
		return Reserves{}, err
	}
	tokenBalance, err := p.tokenBalance(ctx, token.Address(), exchange)
	if err != nil {
		return Reserves{}, err
	}

	return Reserves{
		ETH:   asset.FormatUnits(ethBalance, 18),
		Token: asset.FormatUnits(tokenBalance, token.Decimals()),
	}, nil
}

func (p *Provider) exchangeFor(ctx context.Context, token common.Address) (common.Address, error) {
	out, err := p.call(ctx, p.factory, p.factoryABI, "getExchange", token)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("getExchange returned unexpected type"))
	}
	return addr, nil
}

func (p *Provider) tokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := p.call(ctx, token, p.erc20ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("balanceOf returned unexpected type"))
	}
	return bal, nil
}

func (p *Provider) ethBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	raw, err := p.cb.Execute(func() ([]byte, error) {
		bal, err := p.client.BalanceAt(ctx, account, nil)
		if err != nil {
			return nil, err
		}
		return bal.Bytes(), nil
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err), apperror.WithContext("eth_getBalance "+account.Hex()))
	}
	return new(big.Int).SetBytes(raw), nil
}

// call packs method, executes it through the circuit breaker and unpacks the outputs.
func (p *Provider) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}

	result, err := p.cb.Execute(func() ([]byte, error) {
		return p.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err), apperror.WithContext(method+" on "+to.Hex()))
	}

	out, err := contract.Unpack(method, result)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err), apperror.WithContext("decode "+method))
	}
	if len(out) == 0 {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext(method+" returned no outputs"))
	}
	return out, nil
}
