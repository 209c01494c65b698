package asset

import "github.com/ethereum/go-ethereum/common"

// Well-known Ethereum mainnet addresses.
var (
	AddrNative = common.Address{}
	AddrWETH   = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrDAI    = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	AddrUSDC   = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrUSDT   = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	AddrTUSD   = common.HexToAddress("0x0000000000085d4780B73119b644AE5ecd22b376")
	AddrPAX    = common.HexToAddress("0x8E870D67F660D95d5be530380D0eC0bd388289E1")
	AddrWBTC   = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

// Well-known tokens.
var (
	ETH  = NewTokenWithName("ETH", "Ether", AddrNative, 18)
	WETH = NewTokenWithName("WETH", "Wrapped Ether", AddrWETH, 18)
	DAI  = NewTokenWithName("DAI", "Dai Stablecoin", AddrDAI, 18)
	USDC = NewTokenWithName("USDC", "USD Coin", AddrUSDC, 6)
	USDT = NewTokenWithName("USDT", "Tether USD", AddrUSDT, 6)
	TUSD = NewTokenWithName("TUSD", "TrueUSD", AddrTUSD, 18)
	PAX  = NewTokenWithName("PAX", "Paxos Standard", AddrPAX, 18)
	WBTC = NewTokenWithName("WBTC", "Wrapped BTC", AddrWBTC, 8)

	ZRX  = NewTokenWithName("ZRX", "0x Protocol Token", common.HexToAddress("0xE41d2489571d322189246DaFA5ebDe1F4699F498"), 18)
	MKR  = NewTokenWithName("MKR", "Maker", common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2"), 18)
	BAT  = NewTokenWithName("BAT", "Basic Attention Token", common.HexToAddress("0x0D8775F648430679A709E98d2b0Cb6250d2887EF"), 18)
	REP  = NewTokenWithName("REP", "Augur Reputation", common.HexToAddress("0x1985365e9f78359a9B6AD760e32412f4a445E862"), 18)
	KNC  = NewTokenWithName("KNC", "Kyber Network Crystal", common.HexToAddress("0xdd974D5C2e2928deA5F71b9825b8b646686BD200"), 18)
	LINK = NewTokenWithName("LINK", "ChainLink Token", common.HexToAddress("0x514910771AF9Ca656af840dff83E8264EcF986CA"), 18)
	OMG  = NewTokenWithName("OMG", "OMG Network", common.HexToAddress("0xd26114cd6EE289AccF82350c8d8487fedB8A0C07"), 18)
	SNT  = NewTokenWithName("SNT", "Status Network Token", common.HexToAddress("0x744d70FDBE2Ba4CF95131626614a1763DF805B9E"), 18)
	MANA = NewTokenWithName("MANA", "Decentraland", common.HexToAddress("0x0F5D2fB29fb7d3CFeE444a200298f468908cC942"), 18)
	GNO  = NewTokenWithName("GNO", "Gnosis", common.HexToAddress("0x6810e776880C02933D47DB1b9fc05908e5386b96"), 18)
)

// wellKnown lists every token DefaultRegistry starts with.
var wellKnown = []*Token{
	ETH, WETH, DAI, USDC, USDT, TUSD, PAX, WBTC,
	ZRX, MKR, BAT, REP, KNC, LINK, OMG, SNT, MANA, GNO,
}
