package kyber

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/perich/ethereum-dex-prices-service/internal/httpclient"
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

const currencies = `{"error":false,"data":[{"symbol":"ETH","id":"0xeeee","decimals":18},{"symbol":"ZRX","id":"0xe41d","decimals":18}]}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := httpclient.NewInstrumentedClient(httpclient.WithBaseURL(server.URL), httpclient.WithProviderName("kyber"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return NewProvider(c, &mockLogger{})
}

func TestProvider_ComputePrice(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/currencies":
			w.Write([]byte(currencies))
		case "/buy_rate":
			if r.URL.Query().Get("id") != "0xe41d" || r.URL.Query().Get("qty") != "100" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"error":false,"data":[{"src_id":"0xeeee","dst_id":"0xe41d","src_qty":[0.25],"dst_qty":[100]}]}`))
		case "/sell_rate":
			w.Write([]byte(`{"error":false,"data":[{"src_id":"0xe41d","dst_id":"0xeeee","src_qty":[100],"dst_qty":[0.2]}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	tests := []struct {
		name      string
		isSell    bool
		wantTotal string
		wantAvg   string
	}{
		{"buy pays src", false, "0.25", "0.0025"},
		{"sell receives dst", true, "0.2", "0.002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ComputePrice(context.Background(), "ZRX", decimal.NewFromInt(100), tt.isSell)
			if !got.OK() {
				t.Fatalf("unexpected error %q", got.Error)
			}
			if !got.TotalPrice.Decimal.Equal(decimal.RequireFromString(tt.wantTotal)) {
				t.Errorf("expected total %s, got %s", tt.wantTotal, got.TotalPrice.Decimal)
			}
			if !got.AvgPrice.Decimal.Equal(decimal.RequireFromString(tt.wantAvg)) {
				t.Errorf("expected avg %s, got %s", tt.wantAvg, got.AvgPrice.Decimal)
			}
		})
	}
}

func TestProvider_Failures(t *testing.T) {
	t.Run("unlisted token", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(currencies))
		})
		got := p.ComputePrice(context.Background(), "MKR", decimal.NewFromInt(1), false)
		if got.Error != "MKR is not available on Kyber" {
			t.Errorf("unexpected error %q", got.Error)
		}
	})

	t.Run("api reports error", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/currencies" {
				w.Write([]byte(currencies))
				return
			}
			w.Write([]byte(`{"error":true,"reason":"quantity too large"}`))
		})
		got := p.ComputePrice(context.Background(), "ZRX", decimal.NewFromInt(1), false)
		if got.Error != "no price data found on Kyber for ZRX" {
			t.Errorf("unexpected error %q", got.Error)
		}
	})

	t.Run("server error", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusBadGateway)
		})
		got := p.ComputePrice(context.Background(), "ZRX", decimal.NewFromInt(1), false)
		if got.Error != "no price data found on Kyber for ZRX" {
			t.Errorf("unexpected error %q", got.Error)
		}
	})
}
