package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ProtocolKind selects the quoting path for a venue.
type ProtocolKind string

const (
	ConstantProduct       ProtocolKind = "constant-product"
	ConcentratedLiquidity ProtocolKind = "concentrated-liquidity"
)

// Trend is a coarse short-horizon price direction label.
type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
	TrendNeutral Trend = "NEUTRAL"
)

// Asset is a fungible token known to the bot. Loaded from static config,
// never mutated afterwards.
type Asset struct {
	Address  common.Address
	Symbol   string
	Decimals int
	// LongTail marks thinly-traded assets; they get a liquidity haircut and
	// a trend check during evaluation.
	LongTail bool
}

// Venue is one liquidity source. Constant-product venues carry Router and
// Factory; concentrated-liquidity venues carry Quoter and Factory.
type Venue struct {
	ID       string
	Kind     ProtocolKind
	Router   common.Address
	Factory  common.Address
	Quoter   common.Address
	FeeTiers []uint32
}

// Combination is one configured unit of evaluation work: borrow AssetIn,
// swap to AssetOut on BuyVenue, swap back on SellVenue.
type Combination struct {
	AssetIn   string
	AssetOut  string
	BuyVenue  string
	SellVenue string
}

// Opportunity is the evaluated outcome of one combination at one notional
// amount. Values are human-readable floats; all money math happens upstream
// in base-unit integers and is converted only here, at the reporting
// boundary. Immutable once constructed.
type Opportunity struct {
	AssetIn   string `json:"tokenIn"`
	AssetOut  string `json:"tokenOut"`
	BuyVenue  string `json:"dexIn"`
	SellVenue string `json:"dexOut"`

	AmountIn     float64 `json:"amountIn"`
	AmountOutBuy float64 `json:"tokenOutAmount"`    // intermediate, in AssetOut
	AmountBack   float64 `json:"tokenInAmountBack"` // sell-leg return, in AssetIn
	MinAmountOut float64 `json:"minAmountOut"`      // AmountBack after slippage haircut

	GasCost      float64 `json:"gasCost"`      // in AssetIn
	FlashLoanFee float64 `json:"flashLoanFee"` // in AssetIn
	NetProfit    float64 `json:"profit"`       // in AssetIn
	ProfitPct    float64 `json:"profitPercentage"`

	LiquidityBuyUSD  float64 `json:"liquidityIn"`
	LiquiditySellUSD float64 `json:"liquidityOut"`
	GasPriceGwei     float64 `json:"gasPriceGwei"`
	Volatility       float64 `json:"volatility"`
	TokenTrend       Trend   `json:"tokenTrend"`

	// Fee tiers that produced the winning quotes, zero for constant-product
	// legs. Carried so the quote can be reproduced.
	BuyFeeTier  uint32 `json:"buyFeeTier,omitempty"`
	SellFeeTier uint32 `json:"sellFeeTier,omitempty"`

	Ts time.Time `json:"timestamp"`
}
