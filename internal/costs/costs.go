// Package costs models everything that erodes an arbitrage round trip: the
// flash-loan fee, gas converted into the trade's input asset, and the
// slippage haircut. All functions are pure integer arithmetic on base
// units; floating point appears only in ProfitPercent, the final reporting
// conversion.
package costs

import "math/big"

const (
	// DefaultFlashLoanFeeBps10k is the Aave flash-loan premium, 0.09%.
	DefaultFlashLoanFeeBps10k = 9
	// DefaultGasUnits is the fallback when on-chain estimation fails:
	// a flash loan plus two swaps.
	DefaultGasUnits = 500_000
)

var (
	bps10k   = big.NewInt(10_000)
	thousand = big.NewInt(1_000)
)

// FlashLoanFee is amountIn * feeBps10k / 10000, floor division.
func FlashLoanFee(amountIn *big.Int, feeBps10k int64) *big.Int {
	fee := new(big.Int).Mul(amountIn, big.NewInt(feeBps10k))
	return fee.Div(fee, bps10k)
}

// SlippageAdjust applies a tolerance expressed in thousandths:
// amount * (1000 - t) / 1000. Tolerance zero returns the amount unchanged.
func SlippageAdjust(amount *big.Int, toleranceThousandths int64) *big.Int {
	if toleranceThousandths <= 0 {
		return new(big.Int).Set(amount)
	}
	factor := big.NewInt(1_000 - toleranceThousandths)
	out := new(big.Int).Mul(amount, factor)
	return out.Div(out, thousand)
}

// GasCostWei is gasPriceWei * gasUnits.
func GasCostWei(gasPriceWei *big.Int, gasUnits uint64) *big.Int {
	return new(big.Int).Mul(gasPriceWei, new(big.Int).SetUint64(gasUnits))
}

// GasCostInAsset converts a wei-denominated gas cost into the input asset.
// gasAssetPrice is the output of quoting one whole unit of the native gas
// asset (10^gasAssetDecimals base units) into assetIn, so the conversion is
// gasWei * gasAssetPrice / 10^gasAssetDecimals.
func GasCostInAsset(gasCostWei, gasAssetPrice *big.Int, gasAssetDecimals int) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(gasAssetDecimals)), nil)
	out := new(big.Int).Mul(gasCostWei, gasAssetPrice)
	return out.Div(out, scale)
}

// NetProfit is minAcceptableOut - amountIn - gasCost - flashLoanFee. It can
// be negative; the caller decides what losses are reportable.
func NetProfit(minAcceptableOut, amountIn, gasCost, flashLoanFee *big.Int) *big.Int {
	out := new(big.Int).Sub(minAcceptableOut, amountIn)
	out.Sub(out, gasCost)
	return out.Sub(out, flashLoanFee)
}

// ProfitPercent is netProfit / amountIn * 100. This is the only place the
// package leaves integer arithmetic.
func ProfitPercent(netProfit, amountIn *big.Int) float64 {
	if amountIn.Sign() == 0 {
		return 0
	}
	p := new(big.Float).SetInt(netProfit)
	p.Quo(p, new(big.Float).SetInt(amountIn))
	p.Mul(p, big.NewFloat(100))
	out, _ := p.Float64()
	return out
}
