// Package volatility samples on-chain quotes over short windows to measure
// price instability and direction for a pair or a single asset.
package volatility

import (
	"context"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/ttlcache"
	"github.com/you/flash-arb/internal/types"
)

const (
	scoreSamples  = 5
	scoreCacheTTL = 30 * time.Second
	trendCacheTTL = 60 * time.Second
	trendBandPct  = 2.0
)

// Prices converts assets at fresh on-chain rates, used for asset-level
// sampling against the reference asset.
type Prices interface {
	Price(ctx context.Context, from, to types.Asset) (*big.Int, error)
}

// Monitor measures short-window price behavior. Pair spreads are always
// fresh; per-asset scores and trends are cached to bound RPC traffic.
type Monitor struct {
	prices      Prices
	ref         types.Asset
	sampleDelay time.Duration
	trendDelay  time.Duration
	scores      *ttlcache.Cache[common.Address, float64]
	trends      *ttlcache.Cache[common.Address, types.Trend]
	log         *zap.Logger
}

func New(prices Prices, ref types.Asset, sampleDelay, trendDelay time.Duration, log *zap.Logger) *Monitor {
	return &Monitor{
		prices:      prices,
		ref:         ref,
		sampleDelay: sampleDelay,
		trendDelay:  trendDelay,
		scores:      ttlcache.New[common.Address, float64](),
		trends:      ttlcache.New[common.Address, types.Trend](),
		log:         log,
	}
}

// Spread quotes the same trade twice, one sample delay apart, and returns
// the absolute percentage move between the two outputs. Any failure reads
// as zero spread so a flaky quoter never blocks evaluation.
func (m *Monitor) Spread(ctx context.Context, q core.Quoter, assetIn, assetOut types.Asset, amountIn *big.Int) float64 {
	first, err := q.Quote(ctx, assetIn, assetOut, amountIn)
	if err != nil {
		return 0
	}
	if err := wait(ctx, m.sampleDelay); err != nil {
		return 0
	}
	second, err := q.Quote(ctx, assetIn, assetOut, amountIn)
	if err != nil {
		return 0
	}

	p1, _ := new(big.Float).SetInt(first.AmountOut).Float64()
	p2, _ := new(big.Float).SetInt(second.AmountOut).Float64()
	if p1 == 0 {
		return 0
	}
	return math.Abs(p2-p1) / p1 * 100
}

// Score samples the asset's reference price several times and maps the
// standard deviation of the returns onto a 0-100 scale. Results are cached
// for 30 seconds per asset.
func (m *Monitor) Score(ctx context.Context, asset types.Asset) float64 {
	if score, ok := m.scores.Get(asset.Address); ok {
		return score
	}

	samples := make([]float64, 0, scoreSamples)
	for i := 0; i < scoreSamples; i++ {
		price, err := m.prices.Price(ctx, asset, m.ref)
		if err == nil {
			samples = append(samples, core.ToHuman(price, m.ref.Decimals))
		}
		if err := wait(ctx, m.sampleDelay); err != nil {
			break
		}
	}
	if len(samples) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		if samples[i-1] == 0 {
			continue
		}
		returns = append(returns, (samples[i]-samples[i-1])/samples[i-1])
	}
	if len(returns) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	vol := math.Sqrt(variance) * math.Sqrt(float64(len(returns)))
	score := math.Min(100, vol*1000)

	m.scores.Set(asset.Address, score, scoreCacheTTL)
	return score
}

// Trend samples the asset's reference price at the start and end of the
// trend window and classifies the move. Failures classify as neutral, and
// every classification is cached for a minute per asset.
func (m *Monitor) Trend(ctx context.Context, asset types.Asset) types.Trend {
	if trend, ok := m.trends.Get(asset.Address); ok {
		return trend
	}

	start, errStart := m.prices.Price(ctx, asset, m.ref)
	if errWait := wait(ctx, m.trendDelay); errWait != nil {
		return types.TrendNeutral
	}
	end, errEnd := m.prices.Price(ctx, asset, m.ref)

	if errStart != nil || errEnd != nil {
		m.log.Debug("trend sampling failed", zap.String("asset", asset.Symbol))
		m.trends.Set(asset.Address, types.TrendNeutral, trendCacheTTL)
		return types.TrendNeutral
	}

	startPrice := core.ToHuman(start, m.ref.Decimals)
	endPrice := core.ToHuman(end, m.ref.Decimals)
	if startPrice == 0 {
		m.trends.Set(asset.Address, types.TrendNeutral, trendCacheTTL)
		return types.TrendNeutral
	}

	changePct := (endPrice - startPrice) / startPrice * 100
	trend := types.TrendNeutral
	switch {
	case changePct > trendBandPct:
		trend = types.TrendBullish
	case changePct < -trendBandPct:
		trend = types.TrendBearish
	}

	m.trends.Set(asset.Address, trend, trendCacheTTL)
	return trend
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
