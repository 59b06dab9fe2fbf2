package volatility

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
	meme = types.Asset{Address: common.HexToAddress("0x3"), Symbol: "MEME", Decimals: 18, LongTail: true}
)

// seqQuoter returns outputs from a fixed sequence, one per call.
type seqQuoter struct {
	outs []*big.Int
	i    int
}

func (s *seqQuoter) Quote(_ context.Context, _, _ types.Asset, _ *big.Int) (core.Quote, error) {
	if s.i >= len(s.outs) {
		return core.Quote{}, core.ErrNoQuote
	}
	out := s.outs[s.i]
	s.i++
	if out == nil {
		return core.Quote{}, core.ErrNoQuote
	}
	return core.Quote{AmountOut: out}, nil
}

// seqPrices returns reference prices from a fixed sequence.
type seqPrices struct {
	prices []*big.Int
	i      int
}

func (s *seqPrices) Price(_ context.Context, _, _ types.Asset) (*big.Int, error) {
	if s.i >= len(s.prices) {
		return nil, core.ErrNoQuote
	}
	p := s.prices[s.i]
	s.i++
	if p == nil {
		return nil, core.ErrNoQuote
	}
	return p, nil
}

func newTestMonitor(prices Prices) *Monitor {
	return New(prices, usdc, 0, 0, zap.NewNop())
}

func TestSpreadPercentMove(t *testing.T) {
	// 1000 -> 1050 is a 5% move.
	q := &seqQuoter{outs: []*big.Int{big.NewInt(1000), big.NewInt(1050)}}
	m := newTestMonitor(&seqPrices{})

	got := m.Spread(context.Background(), q, usdc, meme, big.NewInt(1))
	require.InDelta(t, 5.0, got, 1e-9)
}

func TestSpreadAbsoluteOnDownMove(t *testing.T) {
	q := &seqQuoter{outs: []*big.Int{big.NewInt(1000), big.NewInt(950)}}
	m := newTestMonitor(&seqPrices{})

	got := m.Spread(context.Background(), q, usdc, meme, big.NewInt(1))
	require.InDelta(t, 5.0, got, 1e-9)
}

func TestSpreadFailureReadsZero(t *testing.T) {
	q := &seqQuoter{outs: []*big.Int{big.NewInt(1000), nil}}
	m := newTestMonitor(&seqPrices{})

	assert.Zero(t, m.Spread(context.Background(), q, usdc, meme, big.NewInt(1)))
}

func TestScoreStablePricesNearZero(t *testing.T) {
	p := &seqPrices{prices: []*big.Int{
		big.NewInt(1_000_000), big.NewInt(1_000_000), big.NewInt(1_000_000),
		big.NewInt(1_000_000), big.NewInt(1_000_000),
	}}
	m := newTestMonitor(p)

	assert.Zero(t, m.Score(context.Background(), meme))
}

func TestScoreVolatilePricesHigherAndCached(t *testing.T) {
	p := &seqPrices{prices: []*big.Int{
		big.NewInt(1_000_000), big.NewInt(1_500_000), big.NewInt(800_000),
		big.NewInt(1_400_000), big.NewInt(900_000),
	}}
	m := newTestMonitor(p)

	first := m.Score(context.Background(), meme)
	require.Greater(t, first, 0.0)
	require.LessOrEqual(t, first, 100.0)

	// Second call must be served from cache: the sequence is exhausted, so a
	// fresh sampling pass would come back empty.
	assert.Equal(t, first, m.Score(context.Background(), meme))
}

func TestScoreTooFewSamplesIsZero(t *testing.T) {
	p := &seqPrices{prices: []*big.Int{big.NewInt(1_000_000)}}
	m := newTestMonitor(p)

	assert.Zero(t, m.Score(context.Background(), meme))
}

func TestTrendClassification(t *testing.T) {
	tests := []struct {
		name  string
		start *big.Int
		end   *big.Int
		want  types.Trend
	}{
		{"bullish above band", big.NewInt(1_000_000), big.NewInt(1_030_000), types.TrendBullish},
		{"bearish below band", big.NewInt(1_000_000), big.NewInt(970_000), types.TrendBearish},
		{"neutral inside band", big.NewInt(1_000_000), big.NewInt(1_010_000), types.TrendNeutral},
		{"neutral at band edge", big.NewInt(1_000_000), big.NewInt(1_020_000), types.TrendNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor(&seqPrices{prices: []*big.Int{tt.start, tt.end}})
			assert.Equal(t, tt.want, m.Trend(context.Background(), meme))
		})
	}
}

func TestTrendFailureIsNeutralAndCached(t *testing.T) {
	m := newTestMonitor(&seqPrices{prices: []*big.Int{nil, nil}})

	assert.Equal(t, types.TrendNeutral, m.Trend(context.Background(), meme))
	// Cached: no further samples are available, yet the answer holds.
	assert.Equal(t, types.TrendNeutral, m.Trend(context.Background(), meme))
}

func TestTrendCachedAcrossCalls(t *testing.T) {
	m := newTestMonitor(&seqPrices{prices: []*big.Int{big.NewInt(1_000_000), big.NewInt(1_100_000)}})

	require.Equal(t, types.TrendBullish, m.Trend(context.Background(), meme))
	assert.Equal(t, types.TrendBullish, m.Trend(context.Background(), meme))
}
