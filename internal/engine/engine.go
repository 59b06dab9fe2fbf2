// Package engine evaluates configured trading combinations and decides
// which opportunities clear the execution gate.
package engine

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/costs"
	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/metrics"
	"github.com/you/flash-arb/internal/types"
)

// GasPricer reports the node's suggested gas price. *ethclient.Client
// satisfies it.
type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// GasEstimator sizes the settlement transaction. Nil means no settlement
// contract is configured; the configured fallback also covers estimation
// failures so cost modeling never inherits the execution-sized limit.
type GasEstimator interface {
	EstimateUnits(ctx context.Context, token common.Address, amount *big.Int) (uint64, error)
}

// Liquidity values a pool's depth in USD.
type Liquidity interface {
	Assess(ctx context.Context, venue *core.Venue, assetA, assetB types.Asset) float64
}

// Volatility measures short-window price instability and direction.
type Volatility interface {
	Spread(ctx context.Context, q core.Quoter, assetIn, assetOut types.Asset, amountIn *big.Int) float64
	Trend(ctx context.Context, asset types.Asset) types.Trend
}

// Prices converts assets at fresh on-chain rates.
type Prices interface {
	Price(ctx context.Context, from, to types.Asset) (*big.Int, error)
}

// Stats is a snapshot of the engine's lifetime counters.
type Stats struct {
	Checks        uint64
	Opportunities uint64
	Trades        uint64
	BestProfitPct float64
	LastCheckAt   time.Time
}

// Engine runs evaluation passes over the configured combinations.
type Engine struct {
	cfg    *config.Config
	assets map[string]types.Asset
	gas    GasPricer
	est    GasEstimator
	liq    Liquidity
	vol    Volatility
	prices Prices
	log    *zap.Logger

	mu    sync.Mutex
	stats Stats
}

func New(cfg *config.Config, gas GasPricer, est GasEstimator, liq Liquidity, vol Volatility, prices Prices, log *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		assets: cfg.AssetTable(),
		gas:    gas,
		est:    est,
		liq:    liq,
		vol:    vol,
		prices: prices,
		log:    log,
	}
}

// CheckOpportunities runs one full evaluation pass: every configured
// combination at every configured notional amount, in config order. Only
// combinations that net a positive profit after all costs are returned.
func (e *Engine) CheckOpportunities(ctx context.Context) []types.Opportunity {
	started := time.Now()
	var found []types.Opportunity

	for _, combo := range e.cfg.Combos() {
		for _, amount := range e.cfg.Trade.Amounts {
			if ctx.Err() != nil {
				return found
			}
			opp := e.evaluate(ctx, combo, amount)
			if opp != nil {
				found = append(found, *opp)
			}
		}
	}

	best := 0.0
	for _, opp := range found {
		if opp.ProfitPct > best {
			best = opp.ProfitPct
		}
	}

	e.mu.Lock()
	e.stats.Checks++
	e.stats.Opportunities += uint64(len(found))
	e.stats.BestProfitPct = best
	e.stats.LastCheckAt = started
	e.mu.Unlock()

	metrics.ChecksTotal.Inc()
	metrics.OpportunitiesTotal.Add(float64(len(found)))
	metrics.BestProfitPct.Set(best)
	metrics.EvalLatency.Observe(time.Since(started).Seconds())

	return found
}

// evaluate runs one combination at one notional amount. A nil result means
// the combination was skipped or unprofitable; both are normal outcomes.
func (e *Engine) evaluate(ctx context.Context, combo types.Combination, amountHuman float64) *types.Opportunity {
	assetIn, okIn := e.assets[combo.AssetIn]
	assetOut, okOut := e.assets[combo.AssetOut]
	buyVenue := core.Get(combo.BuyVenue)
	sellVenue := core.Get(combo.SellVenue)
	if !okIn || !okOut || buyVenue == nil || sellVenue == nil {
		e.log.Warn("combination references unknown asset or venue",
			zap.String("pair", combo.AssetIn+"/"+combo.AssetOut))
		return nil
	}

	amountIn := core.ToBase(amountHuman, assetIn.Decimals)

	buyQuote, err := buyVenue.Quoter.Quote(ctx, assetIn, assetOut, amountIn)
	if err != nil {
		e.noteQuoteFailure("buy leg", combo, err)
		return nil
	}
	sellQuote, err := sellVenue.Quoter.Quote(ctx, assetOut, assetIn, buyQuote.AmountOut)
	if err != nil {
		e.noteQuoteFailure("sell leg", combo, err)
		return nil
	}

	spread := e.vol.Spread(ctx, buyVenue.Quoter, assetIn, assetOut, amountIn)
	if spread > e.cfg.Risk.MaxVolatilityPct {
		e.log.Debug("volatility above ceiling, skipping",
			zap.String("pair", combo.AssetIn+"/"+combo.AssetOut),
			zap.Float64("volatility_pct", spread))
		return nil
	}

	minAmountOut := costs.SlippageAdjust(sellQuote.AmountOut, e.cfg.Risk.SlippageThousandths)

	gasPriceWei, err := e.gas.SuggestGasPrice(ctx)
	if err != nil {
		e.log.Warn("gas price unavailable", zap.Error(err))
		return nil
	}
	gasPriceGwei, _ := new(big.Float).Quo(
		new(big.Float).SetInt(gasPriceWei),
		big.NewFloat(1e9),
	).Float64()
	metrics.GasPriceGwei.Set(gasPriceGwei)

	gasUnits := e.cfg.Gas.FallbackUnits
	if e.est != nil {
		if units, err := e.est.EstimateUnits(ctx, assetIn.Address, amountIn); err == nil {
			gasUnits = units
		} else {
			e.log.Debug("gas estimation failed, using fallback units", zap.Error(err))
		}
	}
	gasCostWei := costs.GasCostWei(gasPriceWei, gasUnits)

	gasAsset := e.assets[e.cfg.Trade.GasAsset]
	gasAssetPrice, err := e.prices.Price(ctx, gasAsset, assetIn)
	if err != nil {
		e.log.Debug("gas conversion price unavailable",
			zap.String("asset", assetIn.Symbol), zap.Error(err))
		return nil
	}
	gasCost := costs.GasCostInAsset(gasCostWei, gasAssetPrice, gasAsset.Decimals)

	flashFee := costs.FlashLoanFee(amountIn, e.cfg.Risk.FlashLoanFeeBps10k)
	netProfit := costs.NetProfit(minAmountOut, amountIn, gasCost, flashFee)
	profitPct := costs.ProfitPercent(netProfit, amountIn)

	// Deep losses are not worth the liquidity and trend RPC traffic.
	if profitPct < -e.cfg.Risk.MaxLossPct {
		return nil
	}

	liqBuy := e.liq.Assess(ctx, buyVenue, assetIn, assetOut)
	liqSell := e.liq.Assess(ctx, sellVenue, assetOut, assetIn)

	trend := types.TrendNeutral
	if assetIn.LongTail || assetOut.LongTail {
		trend = e.vol.Trend(ctx, assetOut)
	}

	if netProfit.Sign() <= 0 {
		return nil
	}

	opp := &types.Opportunity{
		AssetIn:   combo.AssetIn,
		AssetOut:  combo.AssetOut,
		BuyVenue:  combo.BuyVenue,
		SellVenue: combo.SellVenue,

		AmountIn:     amountHuman,
		AmountOutBuy: core.ToHuman(buyQuote.AmountOut, assetOut.Decimals),
		AmountBack:   core.ToHuman(sellQuote.AmountOut, assetIn.Decimals),
		MinAmountOut: core.ToHuman(minAmountOut, assetIn.Decimals),

		GasCost:      core.ToHuman(gasCost, assetIn.Decimals),
		FlashLoanFee: core.ToHuman(flashFee, assetIn.Decimals),
		NetProfit:    core.ToHuman(netProfit, assetIn.Decimals),
		ProfitPct:    profitPct,

		LiquidityBuyUSD:  liqBuy,
		LiquiditySellUSD: liqSell,
		GasPriceGwei:     gasPriceGwei,
		Volatility:       spread,
		TokenTrend:       trend,

		BuyFeeTier:  buyQuote.FeeTier,
		SellFeeTier: sellQuote.FeeTier,

		Ts: time.Now().UTC(),
	}

	e.log.Info("opportunity found",
		zap.String("pair", opp.AssetIn+"/"+opp.AssetOut),
		zap.String("route", opp.BuyVenue+"->"+opp.SellVenue),
		zap.Float64("amount_in", opp.AmountIn),
		zap.Float64("net_profit", opp.NetProfit),
		zap.Float64("profit_pct", opp.ProfitPct))
	return opp
}

func (e *Engine) noteQuoteFailure(leg string, combo types.Combination, err error) {
	if errors.Is(err, core.ErrNoQuote) {
		e.log.Debug("no quote", zap.String("leg", leg),
			zap.String("pair", combo.AssetIn+"/"+combo.AssetOut))
		return
	}
	metrics.QuoterErrors.Inc()
	e.log.Warn("quote failed", zap.String("leg", leg),
		zap.String("pair", combo.AssetIn+"/"+combo.AssetOut), zap.Error(err))
}

// RecordTrade bumps the executed-trade counter.
func (e *Engine) RecordTrade() {
	e.mu.Lock()
	e.stats.Trades++
	e.mu.Unlock()
	metrics.TradesTotal.Inc()
}

// Stats returns a snapshot of the lifetime counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
