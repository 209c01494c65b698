package uniswap

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/perich/ethereum-dex-prices-service/internal/asset"
	"github.com/perich/ethereum-dex-prices-service/internal/config"
	"github.com/perich/ethereum-dex-prices-service/internal/logger"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

var (
	testFactory  = common.HexToAddress("0xc0a47dFe034B400B47bDaD5FecDa2621de6c4d95")
	testExchange = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

// fakeChain answers getExchange, balanceOf and eth_getBalance from fixed values.
type fakeChain struct {
	t          *testing.T
	factoryABI abi.ABI
	erc20ABI   abi.ABI

	exchange     common.Address
	ethBalance   *big.Int
	tokenBalance *big.Int
	err          error
}

func newFakeChain(t *testing.T, exchange common.Address, ethWei, tokenWei *big.Int) *fakeChain {
	t.Helper()
	f, err := abi.JSON(strings.NewReader(FactoryABI))
	if err != nil {
		t.Fatalf("parse factory abi: %v", err)
	}
	e, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		t.Fatalf("parse erc20 abi: %v", err)
	}
	return &fakeChain{t: t, factoryABI: f, erc20ABI: e, exchange: exchange, ethBalance: ethWei, tokenBalance: tokenWei}
}

func (f *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	getExchange := f.factoryABI.Methods["getExchange"]
	balanceOf := f.erc20ABI.Methods["balanceOf"]

	switch {
	case bytes.HasPrefix(msg.Data, getExchange.ID):
		if *msg.To != testFactory {
			f.t.Errorf("getExchange sent to %s", msg.To.Hex())
		}
		return getExchange.Outputs.Pack(f.exchange)
	case bytes.HasPrefix(msg.Data, balanceOf.ID):
		args, err := balanceOf.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		if owner := args[0].(common.Address); owner != f.exchange {
			f.t.Errorf("balanceOf queried for %s", owner.Hex())
		}
		return balanceOf.Outputs.Pack(f.tokenBalance)
	}
	f.t.Errorf("unexpected call data %x", msg.Data)
	return nil, errors.New("unexpected call")
}

func (f *fakeChain) BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	if account != f.exchange {
		f.t.Errorf("balance queried for %s", account.Hex())
	}
	return f.ethBalance, nil
}

func wei(whole int64) *big.Int {
	v, err := asset.ParseUnits(decimal.NewFromInt(whole), 18)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestProvider(t *testing.T, chain ChainReader) *Provider {
	t.Helper()
	cfg := config.EthereumConfig{UniswapFactory: testFactory.Hex()}
	p, err := NewProvider(chain, cfg, asset.DefaultRegistry(), &mockLogger{})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestProvider_ComputePrice(t *testing.T) {
	chain := newFakeChain(t, testExchange, wei(10), wei(1000))
	p := newTestProvider(t, chain)

	t.Run("buy", func(t *testing.T) {
		got := p.ComputePrice(context.Background(), "ZRX", decimal.NewFromInt(100), false)
		if !got.OK() {
			t.Fatalf("unexpected error %q", got.Error)
		}
		// 100·10·1000 / (900·997 + 1)
		want := decimal.NewFromInt(1000000).Div(decimal.NewFromInt(897301))
		if !got.TotalPrice.Decimal.Equal(want) {
			t.Errorf("expected total %s, got %s", want, got.TotalPrice.Decimal)
		}
		if got.ExchangeName != "Uniswap" || got.TokenSymbol != "ZRX" {
			t.Errorf("unexpected identity %+v", got)
		}
	})

	t.Run("sell", func(t *testing.T) {
		got := p.ComputePrice(context.Background(), "ZRX", decimal.NewFromInt(100), true)
		if !got.OK() {
			t.Fatalf("unexpected error %q", got.Error)
		}
		// 100·10·997 / (1000·1000 + 100·997)
		want := decimal.NewFromInt(997000).Div(decimal.NewFromInt(1099700))
		if !got.TotalPrice.Decimal.Equal(want) {
			t.Errorf("expected total %s, got %s", want, got.TotalPrice.Decimal)
		}
	})

	t.Run("buying the whole pool", func(t *testing.T) {
		got := p.ComputePrice(context.Background(), "ZRX", decimal.NewFromInt(1000), false)
		if got.Error != "not enough liquidity on Uniswap for 1000 ZRX" {
			t.Errorf("unexpected error %q", got.Error)
		}
	})
}

func TestProvider_Failures(t *testing.T) {
	tests := []struct {
		name    string
		chain   *fakeChain
		symbol  string
		wantErr string
	}{
		{
			name:    "unknown token",
			chain:   newFakeChain(t, testExchange, wei(1), wei(1)),
			symbol:  "OBVSNOTATOKEN",
			wantErr: "no token metadata available for OBVSNOTATOKEN, can't get decimals",
		},
		{
			name:    "bnb",
			chain:   newFakeChain(t, testExchange, wei(1), wei(1)),
			symbol:  "BNB",
			wantErr: "BNB cannot be traded on Uniswap due to a bug in the token code as of solc 0.4.22",
		},
		{
			name:    "no exchange",
			chain:   newFakeChain(t, common.Address{}, wei(1), wei(1)),
			symbol:  "MKR",
			wantErr: "no Uniswap market exists for MKR",
		},
		{
			name:    "empty pool",
			chain:   newFakeChain(t, testExchange, big.NewInt(0), wei(5)),
			symbol:  "MKR",
			wantErr: "no liquidity available for MKR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.chain)
			got := p.ComputePrice(context.Background(), tt.symbol, decimal.NewFromInt(500), false)
			if got.Error != tt.wantErr {
				t.Errorf("expected %q, got %q", tt.wantErr, got.Error)
			}
			if got.TotalPrice.Valid {
				t.Error("expected no price")
			}
		})
	}

	t.Run("node failure", func(t *testing.T) {
		chain := newFakeChain(t, testExchange, wei(1), wei(1))
		chain.err = errors.New("connection refused")
		p := newTestProvider(t, chain)
		got := p.ComputePrice(context.Background(), "MKR", decimal.NewFromInt(1), false)
		if got.OK() || got.Error == "" {
			t.Errorf("expected failure, got %+v", got)
		}
	})
}

func TestBuyCost_InsufficientLiquidity(t *testing.T) {
	r := Reserves{ETH: decimal.NewFromInt(10), Token: decimal.NewFromInt(50)}
	if _, err := BuyCost(decimal.NewFromInt(50), r); err == nil {
		t.Error("expected error when draining the pool")
	}
	if _, err := BuyCost(decimal.NewFromInt(49), r); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
