// Package httpapi serves ranked quotes over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
	"github.com/perich/ethereum-dex-prices-service/internal/apperror"
	"github.com/perich/ethereum-dex-prices-service/internal/logger"
)

// Quoter ranks every venue's answer for a trade.
type Quoter interface {
	Aggregate(ctx context.Context, symbol string, amount decimal.Decimal, dir domain.Direction) ([]domain.QuoteResult, error)
}

// Server exposes GET /buy and GET /sell.
type Server struct {
	quoter         Quoter
	logger         logger.LoggerInterface
	router         *mux.Router
	allowedOrigins []string
	server         *http.Server
}

// NewServer creates the API server. An empty origin list allows any origin.
func NewServer(quoter Quoter, allowedOrigins []string, log logger.LoggerInterface) *Server {
	s := &Server{
		quoter:         quoter,
		logger:         log,
		router:         mux.NewRouter(),
		allowedOrigins: allowedOrigins,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/buy", s.handleQuote(domain.DirectionBuy)).Methods(http.MethodGet)
	s.router.HandleFunc("/sell", s.handleQuote(domain.DirectionSell)).Methods(http.MethodGet)
	s.router.HandleFunc("/{direction}/{amount}/{symbol}", s.handlePathQuote).Methods(http.MethodGet)
}

// Handler returns the router wrapped with CORS and tracing.
func (s *Server) Handler() http.Handler {
	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		// Credentials are only offered to an explicit allow list.
		AllowCredentials: !slices.Contains(origins, "*"),
	})
	return otelhttp.NewHandler(c.Handler(s.router), "httpapi")
}

// Start listens on port until Stop is called.
func (s *Server) Start(ctx context.Context, port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info(ctx, "dex price server listening", "port", port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleQuote(dir domain.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		s.quote(w, r, string(dir), q.Get("amount"), q.Get("symbol"))
	}
}

// handlePathQuote serves /{direction}/{amount}/{symbol}, the CLI argument order.
func (s *Server) handlePathQuote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.quote(w, r, vars["direction"], vars["amount"], vars["symbol"])
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request, rawDir, rawAmount, symbol string) {
	ctx := r.Context()

	dir, amount, err := ParseRequest(rawDir, rawAmount, symbol)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	results, err := s.quoter.Aggregate(ctx, symbol, amount, dir)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	s.logger.Debug(ctx, "served quotes", "direction", dir, "symbol", symbol, "results", len(results))
	s.respondJSON(ctx, w, http.StatusOK, results)
}

// ParseRequest validates the three user inputs shared by the CLI and the API.
func ParseRequest(rawDir, rawAmount, symbol string) (domain.Direction, decimal.Decimal, error) {
	if strings.TrimSpace(rawAmount) == "" || strings.TrimSpace(symbol) == "" {
		return "", decimal.Zero, apperror.New(apperror.CodeRequiredField,
			apperror.WithMessage(`must include "amount" and "symbol" parameters`))
	}

	dir, err := domain.ParseDirection(rawDir)
	if err != nil {
		return "", decimal.Zero, err
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(rawAmount))
	if err != nil {
		return "", decimal.Zero, apperror.New(apperror.CodeInvalidTradeSize, apperror.WithCause(err),
			apperror.WithMessage(fmt.Sprintf("amount %q is not a number", rawAmount)))
	}
	if err := domain.ValidateTradeSize(amount); err != nil {
		return "", decimal.Zero, err
	}
	return dir, amount, nil
}

func (s *Server) respondJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "max-age=0")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn(ctx, "failed to write response", "status", status, "error", err)
	}
}

// respondError answers 400 with the error body. Aggregation only fails on
// bad input, so anything else is unexpected.
func (s *Server) respondError(ctx context.Context, w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(apperror.CodeInternalError, "quote", err)
		s.logger.Error(ctx, "quote request failed", appErr.ToLog()...)
		s.respondJSON(ctx, w, http.StatusInternalServerError, withTrace(ctx, appErr).ToResponse())
		return
	}
	s.respondJSON(ctx, w, http.StatusBadRequest, withTrace(ctx, appErr).ToResponse())
}

func withTrace(ctx context.Context, appErr *apperror.AppError) *apperror.AppError {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return appErr.WithTraceID(sc.TraceID().String())
	}
	return appErr
}
