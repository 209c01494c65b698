// Package main is the entry point for the DEX price service.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/perich/ethereum-dex-prices-service/business/pricing"
	pricingDI "github.com/perich/ethereum-dex-prices-service/business/pricing/di"
	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
	"github.com/perich/ethereum-dex-prices-service/business/pricing/infra/httpapi"
	"github.com/perich/ethereum-dex-prices-service/internal/apm"
	"github.com/perich/ethereum-dex-prices-service/internal/config"
	"github.com/perich/ethereum-dex-prices-service/internal/health"
	"github.com/perich/ethereum-dex-prices-service/internal/logger"
	"github.com/perich/ethereum-dex-prices-service/internal/metrics"
	"github.com/perich/ethereum-dex-prices-service/internal/monolith"
	"github.com/perich/ethereum-dex-prices-service/internal/peer"
	"github.com/perich/ethereum-dex-prices-service/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const usage = `usage:
  dexprices [flags] BUY|SELL AMOUNT SYMBOL   price a trade on every venue
  dexprices [flags] -serve                   run the HTTP API

flags:
`

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	serve := flag.Bool("serve", false, "Run the HTTP API instead of a single lookup")
	plain := flag.Bool("plain", false, "Print results without the interactive view")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("dexprices %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if !*serve && flag.NArg() != 3 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	if *serve {
		err = runServer(ctx, *configPath)
	} else {
		err = runLookup(ctx, *configPath, flag.Arg(0), flag.Arg(1), flag.Arg(2), *plain)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles what both modes need.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	mono   *monolith.App
	module *pricing.Module
	tp     apm.TraceProvider
}

func setup(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logOut, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)

	tp, err := apm.NewTraceProvider(cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	mono, err := monolith.New(cfg, log)
	if err != nil {
		tp.Stop()
		return nil, fmt.Errorf("failed to create monolith: %w", err)
	}

	module := &pricing.Module{}
	mono.OnClose(module.Shutdown)

	if err := mono.RegisterModules(module); err != nil {
		mono.Close()
		tp.Stop()
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, module); err != nil {
		mono.Close()
		tp.Stop()
		return nil, fmt.Errorf("failed to start modules: %w", err)
	}

	return &app{cfg: cfg, log: log, mono: mono, module: module, tp: tp}, nil
}

func (a *app) close() {
	a.mono.Close()
	a.tp.Stop()
	a.log.Sync()
}

func runLookup(ctx context.Context, configPath, rawDir, rawAmount, rawSymbol string, plain bool) error {
	dir, amount, err := httpapi.ParseRequest(rawDir, rawAmount, rawSymbol)
	if err != nil {
		return err
	}
	symbol := strings.ToUpper(rawSymbol)

	// Logs would garble the interactive view.
	logOut := io.Discard
	if plain {
		logOut = os.Stderr
	}

	a, err := setup(ctx, configPath, logOut)
	if err != nil {
		return err
	}
	defer a.close()

	agg := pricingDI.GetAggregator(a.mono.Services())
	fetch := func(ctx context.Context) ([]domain.QuoteResult, error) {
		return agg.Aggregate(ctx, symbol, amount, dir)
	}

	if plain {
		results, err := fetch(ctx)
		if err != nil {
			return err
		}
		fmt.Print(ui.PrintPlain(dir, amount.String(), symbol, results))
		return nil
	}

	return ui.Run(ui.New(ctx, dir, amount.String(), symbol, agg.Sources(), fetch))
}

func runServer(ctx context.Context, configPath string) error {
	a, err := setup(ctx, configPath, os.Stderr)
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Info(ctx, "starting DEX price service",
		"version", version,
		"environment", a.cfg.App.Environment,
	)

	if a.cfg.Telemetry.Enabled {
		if _, err := metrics.NewMetricProvider(metrics.WithServiceName(a.cfg.Telemetry.ServiceName)); err != nil {
			return fmt.Errorf("failed to init metrics: %w", err)
		}
		go func() {
			port := strconv.Itoa(a.cfg.Telemetry.PrometheusPort)
			if err := metrics.ServePrometheusMetrics(ctx, a.log, metrics.WithPort(port)); err != nil {
				a.log.Warn(ctx, "metrics server stopped", "error", err)
			}
		}()
	}

	healthServer := health.NewServer(a.cfg.Health.Port, version, a.log)
	if a.cfg.Quotes.IsEnabled("airswap") {
		session := pricingDI.GetPeerSession(a.mono.Services())
		healthServer.RegisterCheck("airswap", health.ConnectedCheck(session, peer.StateAuthenticated))
		go warmUp(ctx, session, a.log)
	}
	if err := healthServer.Start(); err != nil {
		a.log.Warn(ctx, "failed to start health server", "error", err)
	}
	defer healthServer.Stop(context.Background())

	server := pricingDI.GetHTTPServer(a.mono.Services())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx, a.cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// warmUpTimeout bounds dial retries during startup.
const warmUpTimeout = time.Minute

// warmUp connects the peer session ahead of the first quote so readiness
// reflects the network. Dials back off until warmUpTimeout; after that the
// next quote tries again.
func warmUp(ctx context.Context, session *peer.Session, log logger.LoggerInterface) {
	connectCtx, cancel := context.WithTimeout(ctx, warmUpTimeout)
	defer cancel()

	if err := session.ConnectWithRetry(connectCtx); err != nil {
		log.Warn(ctx, "airswap connection failed, will retry on demand", "error", err)
		return
	}
	log.Info(ctx, "airswap session authenticated", "address", session.Address())
}
