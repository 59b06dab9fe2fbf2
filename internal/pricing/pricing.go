// Package pricing supplies fresh reference prices by quoting one whole unit
// of an asset through a designated constant-product venue. Prices are never
// cached: gas and liquidity conversions must reflect the chain as-of the
// evaluation pass.
package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/types"
)

// Source resolves asset prices against a reference venue.
type Source struct {
	quoter core.Quoter
}

func New(quoter core.Quoter) *Source {
	return &Source{quoter: quoter}
}

// Price returns the value of one whole unit of `from` (10^from.Decimals
// base units) denominated in `to` base units.
func (s *Source) Price(ctx context.Context, from, to types.Asset) (*big.Int, error) {
	if from.Address == to.Address {
		return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(to.Decimals)), nil), nil
	}
	oneUnit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(from.Decimals)), nil)
	q, err := s.quoter.Quote(ctx, from, to, oneUnit)
	if err != nil {
		return nil, fmt.Errorf("reference price %s->%s: %w", from.Symbol, to.Symbol, err)
	}
	return q.AmountOut, nil
}
