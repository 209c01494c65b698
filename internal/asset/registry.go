package asset

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe symbol and address index of known tokens.
type Registry struct {
	bySymbol  map[string]*Token
	byAddress map[common.Address]*Token
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bySymbol:  make(map[string]*Token),
		byAddress: make(map[common.Address]*Token),
	}
}

// DefaultRegistry returns a registry pre-populated with well-known mainnet tokens.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range wellKnown {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a token. Later registrations win so remote
// metadata can correct the built-in list.
func (r *Registry) Register(t *Token) {
	if t == nil {
		panic("asset: cannot register nil token")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.bySymbol[t.Symbol()] = t
	if !t.IsNative() {
		r.byAddress[t.Address()] = t
	}
}

// BySymbol looks a token up by ticker, case-insensitively.
func (r *Registry) BySymbol(symbol string) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.bySymbol[strings.ToUpper(symbol)]
	return t, ok
}

// ByAddress looks a token up by contract address.
func (r *Registry) ByAddress(addr common.Address) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byAddress[addr]
	return t, ok
}

// Len returns the number of registered symbols.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySymbol)
}
