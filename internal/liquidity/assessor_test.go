package liquidity

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/types"
)

var (
	usdc = types.Asset{Address: common.HexToAddress("0x1"), Symbol: "USDC", Decimals: 6}
	weth = types.Asset{Address: common.HexToAddress("0x2"), Symbol: "WETH", Decimals: 18}
	meme = types.Asset{Address: common.HexToAddress("0x3"), Symbol: "MEME", Decimals: 18, LongTail: true}
)

type stubDepth struct {
	a, b *big.Int
	err  error
}

func (s stubDepth) Reserves(_ context.Context, _, _ types.Asset) (*big.Int, *big.Int, error) {
	return s.a, s.b, s.err
}

type stubPrices struct {
	prices map[common.Address]*big.Int
}

func (s stubPrices) Price(_ context.Context, from, to types.Asset) (*big.Int, error) {
	p, ok := s.prices[from.Address]
	if !ok {
		return nil, core.ErrNoQuote
	}
	return p, nil
}

func testVenue(depth core.DepthReader) *core.Venue {
	return &core.Venue{Meta: types.Venue{ID: "testswap"}, Depth: depth}
}

func TestAssessRefAssetSidePlusConverted(t *testing.T) {
	// 100,000 USDC + 50 WETH at 3000 USDC/WETH = 250,000 USD.
	depth := stubDepth{
		a: new(big.Int).Mul(big.NewInt(100_000), big.NewInt(1_000_000)),
		b: new(big.Int).Mul(big.NewInt(50), core.ToBase(1, 18)),
	}
	prices := stubPrices{prices: map[common.Address]*big.Int{
		weth.Address: big.NewInt(3000_000000), // 3000 USDC per WETH
	}}
	a := New(usdc, 0.10, prices, zap.NewNop())

	got := a.Assess(context.Background(), testVenue(depth), usdc, weth)
	require.InDelta(t, 250_000, got, 0.01)
}

func TestAssessLongTailDiscount(t *testing.T) {
	depth := stubDepth{
		a: new(big.Int).Mul(big.NewInt(10_000), big.NewInt(1_000_000)),
		b: core.ToBase(1_000_000, 18),
	}
	prices := stubPrices{prices: map[common.Address]*big.Int{
		meme.Address: big.NewInt(10_000), // 0.01 USDC per MEME
	}}
	a := New(usdc, 0.10, prices, zap.NewNop())

	// 10,000 + 10,000 = 20,000, less the 10% haircut = 18,000.
	got := a.Assess(context.Background(), testVenue(depth), usdc, meme)
	require.InDelta(t, 18_000, got, 0.01)
}

func TestAssessMajorPairKeepsFullDepth(t *testing.T) {
	depth := stubDepth{
		a: new(big.Int).Mul(big.NewInt(10_000), big.NewInt(1_000_000)),
		b: new(big.Int).Mul(big.NewInt(10), core.ToBase(1, 18)),
	}
	prices := stubPrices{prices: map[common.Address]*big.Int{
		weth.Address: big.NewInt(1000_000000),
	}}
	a := New(usdc, 0.10, prices, zap.NewNop())

	// No long-tail asset in the pair, so no haircut applies.
	got := a.Assess(context.Background(), testVenue(depth), usdc, weth)
	require.InDelta(t, 20_000, got, 0.01)
}

func TestAssessMissingPoolIsZero(t *testing.T) {
	a := New(usdc, 0.10, stubPrices{}, zap.NewNop())
	got := a.Assess(context.Background(), testVenue(stubDepth{err: core.ErrNoQuote}), usdc, weth)
	assert.Zero(t, got)
}

func TestAssessPriceFailureIsZero(t *testing.T) {
	depth := stubDepth{a: big.NewInt(1_000_000), b: core.ToBase(1, 18)}
	a := New(usdc, 0.10, stubPrices{}, zap.NewNop())
	got := a.Assess(context.Background(), testVenue(depth), usdc, weth)
	assert.Zero(t, got)
}
