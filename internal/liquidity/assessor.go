// Package liquidity estimates the USD depth of a pool backing a trade leg.
package liquidity

import (
	"context"
	"errors"
	"math/big"

	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/types"
)

// Prices converts between assets at fresh on-chain rates.
type Prices interface {
	Price(ctx context.Context, from, to types.Asset) (*big.Int, error)
}

// Assessor values pool reserves in units of a USD-pegged reference asset.
type Assessor struct {
	ref      types.Asset
	discount float64
	prices   Prices
	log      *zap.Logger
}

func New(ref types.Asset, discount float64, prices Prices, log *zap.Logger) *Assessor {
	return &Assessor{ref: ref, discount: discount, prices: prices, log: log}
}

// Assess returns the USD depth of the pool for (assetA, assetB) on the given
// venue: the reference-asset side counts at face value, the other side is
// converted via a freshly fetched reference price. Long-tail pairs lose the
// discount fraction of their raw depth. Absent or unreadable pools report
// zero depth.
func (a *Assessor) Assess(ctx context.Context, venue *core.Venue, assetA, assetB types.Asset) float64 {
	reserveA, reserveB, err := venue.Depth.Reserves(ctx, assetA, assetB)
	if err != nil {
		if !errors.Is(err, core.ErrNoQuote) {
			a.log.Debug("reserve lookup failed",
				zap.String("venue", venue.Meta.ID),
				zap.String("pair", assetA.Symbol+"/"+assetB.Symbol),
				zap.Error(err))
		}
		return 0
	}

	valueA, err := a.usdValue(ctx, assetA, reserveA)
	if err != nil {
		return 0
	}
	valueB, err := a.usdValue(ctx, assetB, reserveB)
	if err != nil {
		return 0
	}

	depth := valueA + valueB
	if assetA.LongTail || assetB.LongTail {
		depth *= 1 - a.discount
	}
	return depth
}

func (a *Assessor) usdValue(ctx context.Context, asset types.Asset, reserve *big.Int) (float64, error) {
	if asset.Address == a.ref.Address {
		return core.ToHuman(reserve, a.ref.Decimals), nil
	}
	price, err := a.prices.Price(ctx, asset, a.ref)
	if err != nil {
		a.log.Debug("reference price unavailable",
			zap.String("asset", asset.Symbol), zap.Error(err))
		return 0, err
	}
	// reserve * price / 10^asset.Decimals, then to human units of the ref asset.
	scaled := new(big.Int).Mul(reserve, price)
	scaled.Div(scaled, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(asset.Decimals)), nil))
	return core.ToHuman(scaled, a.ref.Decimals), nil
}
