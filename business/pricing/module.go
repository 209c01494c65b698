// Package pricing implements the DEX price comparison context.
package pricing

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/app"
	pricingDI "github.com/perich/ethereum-dex-prices-service/business/pricing/di"
	"github.com/perich/ethereum-dex-prices-service/business/pricing/infra/airswap"
	"github.com/perich/ethereum-dex-prices-service/business/pricing/infra/bancor"
	"github.com/perich/ethereum-dex-prices-service/business/pricing/infra/httpapi"
	"github.com/perich/ethereum-dex-prices-service/business/pricing/infra/kyber"
	"github.com/perich/ethereum-dex-prices-service/business/pricing/infra/orderbook"
	"github.com/perich/ethereum-dex-prices-service/business/pricing/infra/uniswap"
	"github.com/perich/ethereum-dex-prices-service/internal/asset"
	"github.com/perich/ethereum-dex-prices-service/internal/config"
	"github.com/perich/ethereum-dex-prices-service/internal/di"
	"github.com/perich/ethereum-dex-prices-service/internal/httpclient"
	"github.com/perich/ethereum-dex-prices-service/internal/logger"
	"github.com/perich/ethereum-dex-prices-service/internal/monolith"
	"github.com/perich/ethereum-dex-prices-service/internal/peer"
	"github.com/perich/ethereum-dex-prices-service/internal/ratelimit"
)

// Module implements the pricing bounded context.
type Module struct {
	mu      sync.Mutex
	session *peer.Session
}

// venue builds one quote source. key matches the config's enabled list.
type venue struct {
	key   string
	build func() (app.QuoteSource, error)
}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register the AirSwap session - private dependency
	di.RegisterToken(c, pricingDI.PeerSession, func(sr di.ServiceRegistry) *peer.Session {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		signer, err := peer.NewKeySigner(cfg.AirSwap.PrivateKey)
		if err != nil {
			panic("failed to load airswap key: " + err.Error())
		}
		session, err := peer.New(peer.Config{
			URL:               cfg.AirSwap.SocketURL,
			CallTimeout:       cfg.AirSwap.CallTimeout,
			KeepAliveInterval: cfg.AirSwap.KeepAliveInterval,
			Reconnect:         cfg.AirSwap.Reconnect,
			ReconnectDelay:    cfg.AirSwap.ReconnectDelay,
		}, signer, log)
		if err != nil {
			panic("failed to create airswap session: " + err.Error())
		}

		m.mu.Lock()
		m.session = session
		m.mu.Unlock()
		return session
	})

	// Register quote sources - private dependency
	di.RegisterToken(c, pricingDI.Sources, func(sr di.ServiceRegistry) []app.QuoteSource {
		sources, err := m.buildSources(sr)
		if err != nil {
			panic("failed to create quote sources: " + err.Error())
		}
		return sources
	})

	// Register Aggregator (public - exposed to other modules)
	di.RegisterToken(c, pricingDI.Aggregator, func(sr di.ServiceRegistry) *app.Aggregator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		agg, err := app.NewAggregator(app.AggregatorConfig{
			SourceTimeout:  cfg.Quotes.SourceTimeout,
			MaxConcurrency: cfg.Quotes.MaxConcurrency,
			Fees:           cfg.Quotes.FeesDecimal(),
		}, log, pricingDI.GetSources(sr)...)
		if err != nil {
			panic("failed to create aggregator: " + err.Error())
		}
		return agg
	})

	// Register HTTP API (public)
	di.RegisterToken(c, pricingDI.HTTPServer, func(sr di.ServiceRegistry) *httpapi.Server {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return httpapi.NewServer(pricingDI.GetAggregator(sr), cfg.Server.AllowedOrigins, log)
	})

	return nil
}

func (m *Module) buildSources(sr di.ServiceRegistry) ([]app.QuoteSource, error) {
	cfg := sr.Get("config").(*config.Config)
	log := sr.Get("logger").(logger.LoggerInterface)
	registry := sr.Get("assetRegistry").(*asset.Registry)
	ethClient := sr.Get("ethClient").(*ethclient.Client)

	rpm := cfg.Quotes.RequestsPerMinute
	rest := func(name, baseURL string) (httpclient.Client, error) {
		return orderbook.NewClient(name, baseURL, ratelimit.New(rpm))
	}
	book := func(name, baseURL string, newFetcher func(httpclient.Client) orderbook.Fetcher) func() (app.QuoteSource, error) {
		return func() (app.QuoteSource, error) {
			client, err := rest(name, baseURL)
			if err != nil {
				return nil, err
			}
			return orderbook.NewSource(name, newFetcher(client), log)
		}
	}

	venues := []venue{
		{"airswap", func() (app.QuoteSource, error) {
			client, err := httpclient.NewInstrumentedClient(httpclient.WithProviderName("airswap-metadata"))
			if err != nil {
				return nil, err
			}
			return airswap.NewProvider(pricingDI.GetPeerSession(sr), client, cfg.AirSwap.MetadataURL, registry, log)
		}},
		{"bancor", func() (app.QuoteSource, error) {
			client, err := rest("bancor", cfg.Venues.Bancor)
			if err != nil {
				return nil, err
			}
			return bancor.NewProvider(client, registry, log), nil
		}},
		{"ddex", book("DDEX", cfg.Venues.DDEX, func(c httpclient.Client) orderbook.Fetcher { return orderbook.NewDDEX(c) })},
		{"ethfinex", book("Ethfinex", cfg.Venues.Ethfinex, func(c httpclient.Client) orderbook.Fetcher { return orderbook.NewEthfinex(c) })},
		{"idex", book("IDEX", cfg.Venues.IDEX, func(c httpclient.Client) orderbook.Fetcher { return orderbook.NewIDEX(c) })},
		{"kyber", func() (app.QuoteSource, error) {
			client, err := rest("kyber", cfg.Venues.Kyber)
			if err != nil {
				return nil, err
			}
			return kyber.NewProvider(client, log), nil
		}},
		{"radar_relay", book("Radar Relay", cfg.Venues.RadarRelay, func(c httpclient.Client) orderbook.Fetcher { return orderbook.NewRadarRelay(c) })},
		{"bamboo_relay", book("Bamboo Relay", cfg.Venues.BambooRelay, func(c httpclient.Client) orderbook.Fetcher { return orderbook.NewBambooRelay(c) })},
		{"switcheo", book("Switcheo", cfg.Venues.Switcheo, func(c httpclient.Client) orderbook.Fetcher { return orderbook.NewSwitcheo(c) })},
		{"saturn", book("Saturn Network", cfg.Venues.Saturn, func(c httpclient.Client) orderbook.Fetcher { return orderbook.NewSaturn(c) })},
	}
	if ethClient != nil {
		venues = append(venues, venue{"uniswap", func() (app.QuoteSource, error) {
			return uniswap.NewProvider(ethClient, cfg.Ethereum, registry, log)
		}})
	} else {
		log.Warn(context.Background(), "ethereum.http_url not set, Uniswap disabled")
	}

	var sources []app.QuoteSource
	for _, v := range venues {
		if !cfg.Quotes.IsEnabled(v.key) {
			continue
		}
		src, err := v.build()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v.key, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// Startup resolves the aggregator so wiring errors surface before the first request.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	agg := pricingDI.GetAggregator(mono.Services())
	log.Info(ctx, "pricing module started", "sources", agg.Sources())
	return nil
}

// Session returns the AirSwap session if one was built.
func (m *Module) Session() *peer.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Shutdown closes the AirSwap session if it was ever created.
func (m *Module) Shutdown() error {
	if s := m.Session(); s != nil {
		return s.Close()
	}
	return nil
}
