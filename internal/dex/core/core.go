package core

import (
	"context"
	"errors"
	"math/big"

	"github.com/you/flash-arb/internal/types"
)

// ErrNoQuote is the single failure outcome of a venue adapter: unreachable
// venue, missing pool, reverted call, or empty liquidity all collapse into
// it. Callers skip the combination and move on; nothing propagates further.
var ErrNoQuote = errors.New("no quote")

// Quote is the result of pricing one (assetIn, assetOut, amountIn) triple on
// one venue. FeeTier is set only for concentrated-liquidity venues and names
// the tier that produced the best output.
type Quote struct {
	AmountOut *big.Int
	FeeTier   uint32
}

// Quoter prices a swap on one venue. AmountOut is in assetOut base units and
// is always positive on success.
type Quoter interface {
	Quote(ctx context.Context, assetIn, assetOut types.Asset, amountIn *big.Int) (Quote, error)
}

// DepthReader exposes raw pool reserves for a pair, in each asset's base
// units. A missing pool returns ErrNoQuote.
type DepthReader interface {
	Reserves(ctx context.Context, a, b types.Asset) (reserveA, reserveB *big.Int, err error)
}

// Venue bundles a venue's metadata with its protocol adapter.
type Venue struct {
	Meta   types.Venue
	Quoter Quoter
	Depth  DepthReader
}
