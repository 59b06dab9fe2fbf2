package core

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBase converts a human-readable amount into base units. Used only at the
// configuration boundary; everything downstream stays integer.
func ToBase(amount float64, decimals int) *big.Int {
	d := decimal.NewFromFloat(amount).Shift(int32(decimals))
	return d.BigInt()
}

// ToHuman converts base units back into a human-readable value at the
// reporting boundary.
func ToHuman(amount *big.Int, decimals int) float64 {
	if amount == nil {
		return 0
	}
	v, _ := decimal.NewFromBigInt(amount, -int32(decimals)).Float64()
	return v
}
