// Package asset holds ERC-20 token metadata and unit conversion helpers.
package asset

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// MaxDecimals guards against garbage metadata from remote token lists.
const MaxDecimals = 36

// Token is the metadata needed to price and address an ERC-20 token.
// The symbol is the lookup key; the address is the on-chain identity.
type Token struct {
	symbol   string
	name     string
	address  common.Address
	decimals uint8
}

// NewToken creates a token. Symbols are normalised to upper case.
func NewToken(symbol string, address common.Address, decimals uint8) *Token {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > MaxDecimals {
		panic("asset: suspicious decimals")
	}
	return &Token{
		symbol:   strings.ToUpper(symbol),
		address:  address,
		decimals: decimals,
	}
}

// NewTokenWithName creates a token with a human-readable name.
func NewTokenWithName(symbol, name string, address common.Address, decimals uint8) *Token {
	t := NewToken(symbol, address, decimals)
	t.name = name
	return t
}

// Symbol returns the ticker symbol (e.g., "ZRX").
func (t *Token) Symbol() string {
	return t.symbol
}

// Name returns the human-readable name, falling back to the symbol.
func (t *Token) Name() string {
	if t.name == "" {
		return t.symbol
	}
	return t.name
}

// Address returns the contract address. The zero address denotes native ETH.
func (t *Token) Address() common.Address {
	return t.address
}

// Decimals returns the number of decimal places.
func (t *Token) Decimals() uint8 {
	return t.decimals
}

// IsNative reports whether this is the chain's native coin.
func (t *Token) IsNative() bool {
	return t.address == (common.Address{})
}

// String returns the symbol.
func (t *Token) String() string {
	return t.symbol
}
