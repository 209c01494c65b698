package uniswap

import (
	"github.com/shopspring/decimal"

	"github.com/perich/ethereum-dex-prices-service/business/pricing/domain"
)

// FactoryABI is the Uniswap v1 factory, trimmed to getExchange.
const FactoryABI = `[
	{
		"name": "getExchange",
		"inputs": [{"name": "token", "type": "address"}],
		"outputs": [{"name": "out", "type": "address"}],
		"constant": true,
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	}
]`

// ERC20ABI is trimmed to balanceOf.
const ERC20ABI = `[
	{
		"name": "balanceOf",
		"inputs": [{"name": "owner", "type": "address"}],
		"outputs": [{"name": "balance", "type": "uint256"}],
		"constant": true,
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	}
]`

// v1 exchanges charge 0.3%, expressed as 997/1000 of the input.
var (
	feeNumerator   = decimal.NewFromInt(997)
	feeDenominator = decimal.NewFromInt(1000)
)

// Reserves is the liquidity held by one token exchange, in whole units.
type Reserves struct {
	ETH   decimal.Decimal
	Token decimal.Decimal
}

// BuyCost is the ETH paid to take amount tokens out of the pool.
func BuyCost(amount decimal.Decimal, r Reserves) (decimal.Decimal, error) {
	if amount.GreaterThanOrEqual(r.Token) {
		return decimal.Zero, domain.ErrInsufficientLiquidity
	}
	numerator := amount.Mul(r.ETH).Mul(feeDenominator)
	denominator := r.Token.Sub(amount).Mul(feeNumerator).Add(decimal.NewFromInt(1))
	return numerator.Div(denominator), nil
}

// SellProceeds is the ETH received for putting amount tokens into the pool.
func SellProceeds(amount decimal.Decimal, r Reserves) decimal.Decimal {
	numerator := amount.Mul(r.ETH).Mul(feeNumerator)
	denominator := r.Token.Mul(feeDenominator).Add(amount.Mul(feeNumerator))
	return numerator.Div(denominator)
}
