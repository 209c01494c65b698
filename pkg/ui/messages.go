// Package ui provides the Bubble Tea view for a single price lookup.
package ui

import (
	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
)

// Message types for TUI updates

// QuotesMsg carries the ranked results once every venue has answered.
type QuotesMsg struct {
	Results []domain.QuoteResult
}

// ErrorMsg is sent when the lookup itself fails.
type ErrorMsg struct {
	Error error
}
