package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
	"github.com/perich/ethereum-dex-prices-service/internal/apperror"
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

type fakeQuoter struct {
	symbol string
	amount decimal.Decimal
	dir    domain.Direction
	calls  int
}

func (f *fakeQuoter) Aggregate(ctx context.Context, symbol string, amount decimal.Decimal, dir domain.Direction) ([]domain.QuoteResult, error) {
	f.calls++
	f.symbol, f.amount, f.dir = symbol, amount, dir
	return []domain.QuoteResult{
		domain.NewQuote("Kyber", symbol, amount, decimal.RequireFromString("0.25")),
		domain.NewFailedQuote("IDEX", symbol, amount, "no price data found on IDEX for "+symbol),
	}, nil
}

func TestServer_Quote(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantDir domain.Direction
	}{
		{"buy query", "/buy?amount=100&symbol=ZRX", domain.DirectionBuy},
		{"sell query", "/sell?amount=100&symbol=ZRX", domain.DirectionSell},
		{"path form", "/sell/100/ZRX", domain.DirectionSell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuoter{}
			s := NewServer(q, nil, &mockLogger{})

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if q.dir != tt.wantDir || q.symbol != "ZRX" || !q.amount.Equal(decimal.NewFromInt(100)) {
				t.Errorf("unexpected aggregate call %+v", q)
			}

			var got []domain.QuoteResult
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(got) != 2 || got[0].ExchangeName != "Kyber" || got[1].Error == "" {
				t.Errorf("unexpected body %s", rec.Body.String())
			}
		})
	}
}

func TestServer_BadInput(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantCode string
	}{
		{"missing symbol", "/buy?amount=100", "REQUIRED_FIELD"},
		{"missing amount", "/sell?symbol=ZRX", "REQUIRED_FIELD"},
		{"not a number", "/buy?amount=lots&symbol=ZRX", "INVALID_TRADE_SIZE"},
		{"negative", "/buy?amount=-1&symbol=ZRX", "INVALID_TRADE_SIZE"},
		{"zero", "/sell?amount=0&symbol=ZRX", "INVALID_TRADE_SIZE"},
		{"runaway exponent", "/buy?amount=1e-20000000&symbol=ZRX", "INVALID_TRADE_SIZE"},
		{"bad direction", "/hold/1/ZRX", "INVALID_DIRECTION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuoter{}
			s := NewServer(q, nil, &mockLogger{})

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if q.calls != 0 {
				t.Errorf("aggregator must not be called on bad input")
			}

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, body.Error.Code)
			}
		})
	}
}

func TestServer_CORS(t *testing.T) {
	tests := []struct {
		name            string
		allowed         []string
		origin          string
		wantOrigin      string
		wantCredentials string
	}{
		{"allow list", []string{"https://prices.example"}, "https://prices.example", "https://prices.example", "true"},
		{"unlisted origin", []string{"https://prices.example"}, "https://other.example", "", ""},
		{"wildcard default", nil, "https://other.example", "*", ""},
		{"explicit wildcard", []string{"*"}, "https://other.example", "*", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&fakeQuoter{}, tt.allowed, &mockLogger{})

			req := httptest.NewRequest(http.MethodGet, "/buy?amount=1&symbol=ZRX", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("expected allow origin %q, got %q", tt.wantOrigin, got)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCredentials {
				t.Errorf("expected allow credentials %q, got %q", tt.wantCredentials, got)
			}
		})
	}
}

func TestServer_ErrorCarriesTraceID(t *testing.T) {
	traceID := trace.TraceID{0x0a, 0xf7, 0x65, 0x19, 0x16, 0xcd, 0x43, 0xdd, 0x84, 0x48, 0xeb, 0x21, 0x1c, 0x80, 0x31, 0x9c}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0xb7, 0xad, 0x6b, 0x71, 0x69, 0x20, 0x33, 0x31},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	s := NewServer(&fakeQuoter{}, nil, &mockLogger{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/buy?amount=0&symbol=ZRX", nil).WithContext(ctx))

	var body struct {
		Error struct {
			TraceID string `json:"traceId"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.TraceID != traceID.String() {
		t.Errorf("expected trace id %s, got %q", traceID, body.Error.TraceID)
	}
}

type recordingLogger struct {
	mockLogger
	warnings []string
}

func (r *recordingLogger) Warn(ctx context.Context, msg string, args ...any) {
	r.warnings = append(r.warnings, msg)
}

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	header http.Header
}

func (b *brokenWriter) Header() http.Header       { return b.header }
func (b *brokenWriter) WriteHeader(int)           {}
func (b *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestServer_LogsFailedWrites(t *testing.T) {
	log := &recordingLogger{}
	s := NewServer(&fakeQuoter{}, nil, log)

	s.respondJSON(context.Background(), &brokenWriter{header: http.Header{}}, http.StatusOK, []string{"quote"})

	if len(log.warnings) != 1 || log.warnings[0] != "failed to write response" {
		t.Errorf("expected one write warning, got %v", log.warnings)
	}
}

func TestParseRequest(t *testing.T) {
	dir, amount, err := ParseRequest("buy", " 2.5 ", "zrx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != domain.DirectionBuy || !amount.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("unexpected parse %s %s", dir, amount)
	}
}

func TestParseRequest_RejectsAmounts(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		code   apperror.Code
	}{
		{"not a number", "lots", apperror.CodeInvalidTradeSize},
		{"zero", "0", apperror.CodeInvalidTradeSize},
		{"tiny exponent", "1e-20000000", apperror.CodeInvalidTradeSize},
		{"huge exponent", "1e20000000", apperror.CodeInvalidTradeSize},
		{"too many decimals", "0." + strings.Repeat("0", 36) + "1", apperror.CodeInvalidTradeSize},
		{"too many integer digits", "1" + strings.Repeat("0", 30), apperror.CodeInvalidTradeSize},
		{"missing", " ", apperror.CodeRequiredField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseRequest("SELL", tt.amount, "ZRX")
			if !apperror.HasCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}

	if _, _, err := ParseRequest("SELL", "0."+strings.Repeat("0", 35)+"1", "ZRX"); err != nil {
		t.Errorf("36 decimal places must be accepted: %v", err)
	}
}
