// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/perich/ethereum-dex-prices-service/business/pricing/app"
	"github.com/perich/ethereum-dex-prices-service/business/pricing/infra/httpapi"
	"github.com/perich/ethereum-dex-prices-service/internal/di"
	"github.com/perich/ethereum-dex-prices-service/internal/peer"
)

// Public service tokens - exposed to other modules
var (
	Aggregator = di.NewToken[*app.Aggregator]("pricing.Aggregator")
	HTTPServer = di.NewToken[*httpapi.Server]("pricing.HTTPServer")
)

// Private dependency tokens - internal to pricing module
var (
	Sources     = di.NewToken[[]app.QuoteSource]("pricing:sources")
	PeerSession = di.NewToken[*peer.Session]("pricing:peerSession")
)

// Helper functions for type-safe access
func GetAggregator(c di.ServiceRegistry) *app.Aggregator {
	return di.GetToken(c, Aggregator)
}

func GetHTTPServer(c di.ServiceRegistry) *httpapi.Server {
	return di.GetToken(c, HTTPServer)
}

func GetSources(c di.ServiceRegistry) []app.QuoteSource {
	return di.GetToken(c, Sources)
}

func GetPeerSession(c di.ServiceRegistry) *peer.Session {
	return di.GetToken(c, PeerSession)
}
