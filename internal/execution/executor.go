// Package execution turns gated opportunities into settlement transactions,
// or into journaled simulations when running dry.
package execution

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/journal"
	"github.com/you/flash-arb/internal/types"
)

type settler interface {
	Owner(ctx context.Context) (common.Address, error)
	Balance(ctx context.Context, token common.Address) (*big.Int, error)
	Execute(ctx context.Context, token common.Address, amount *big.Int) (txHash string, gasUsed uint64, err error)
	Sender() common.Address
}

type recorder interface {
	Trade(path string, rec journal.TradeRecord) error
	Simulation(path string, rec journal.SimulationRecord) error
}

type tradeCounter interface {
	RecordTrade()
}

// Executor consumes gated opportunities. With no settlement client, or in
// dry-run mode, every opportunity becomes a journaled simulation instead of
// a transaction.
type Executor struct {
	cfg     *config.Config
	assets  map[string]types.Asset
	settle  settler
	journal recorder
	stats   tradeCounter
	log     *zap.Logger

	ownerOnce sync.Once
	ownerErr  error
}

func NewExecutor(cfg *config.Config, settle settler, journal recorder, stats tradeCounter, log *zap.Logger) *Executor {
	return &Executor{
		cfg:     cfg,
		assets:  cfg.AssetTable(),
		settle:  settle,
		journal: journal,
		stats:   stats,
		log:     log,
	}
}

// Run consumes until the context is cancelled or the channel is closed.
// Closing the channel drains what was already gated, which is how the
// single-pass mode waits for its journal writes.
func (e *Executor) Run(ctx context.Context, in <-chan types.Opportunity) {
	for {
		select {
		case <-ctx.Done():
			return
		case opp, ok := <-in:
			if !ok {
				return
			}
			if e.cfg.DryRun || e.settle == nil {
				e.simulate(opp)
				continue
			}
			e.execute(ctx, opp)
		}
	}
}

// execute submits one flash loan. The wallet must own the settlement
// contract; the check runs once and a mismatch disables execution for the
// life of the process.
func (e *Executor) execute(ctx context.Context, opp types.Opportunity) {
	if err := e.verifyOwner(ctx); err != nil {
		e.log.Error("owner check failed, falling back to simulation", zap.Error(err))
		e.simulate(opp)
		return
	}

	asset, ok := e.assets[opp.AssetIn]
	if !ok {
		e.log.Error("opportunity references unknown asset", zap.String("asset", opp.AssetIn))
		return
	}
	amount := core.ToBase(opp.AmountIn, asset.Decimals)

	txHash, gasUsed, err := e.settle.Execute(ctx, asset.Address, amount)
	rec := journal.TradeRecord{Opportunity: opp, TxHash: txHash, GasUsed: gasUsed}
	if err != nil {
		rec.Status = "failed"
		rec.Error = err.Error()
		e.log.Error("flash loan failed",
			zap.String("pair", opp.AssetIn+"/"+opp.AssetOut),
			zap.String("tx", txHash),
			zap.Error(err))
	} else {
		rec.Status = "confirmed"
		e.stats.RecordTrade()
		e.log.Info("flash loan confirmed",
			zap.String("pair", opp.AssetIn+"/"+opp.AssetOut),
			zap.String("tx", txHash),
			zap.Uint64("gas_used", gasUsed),
			zap.Float64("net_profit", opp.NetProfit))
	}

	if err := e.journal.Trade(e.cfg.Journal.TradesPath, rec); err != nil {
		e.log.Warn("trade journal write failed", zap.Error(err))
	}
}

// simulate walks through the would-be settlement and journals each step.
func (e *Executor) simulate(opp types.Opportunity) {
	steps := []string{
		fmt.Sprintf("borrow %.6f %s via flash loan", opp.AmountIn, opp.AssetIn),
		fmt.Sprintf("swap %.6f %s for %.6f %s on %s", opp.AmountIn, opp.AssetIn, opp.AmountOutBuy, opp.AssetOut, opp.BuyVenue),
		fmt.Sprintf("swap %.6f %s back for %.6f %s on %s", opp.AmountOutBuy, opp.AssetOut, opp.AmountBack, opp.AssetIn, opp.SellVenue),
		fmt.Sprintf("repay %.6f %s plus %.6f fee", opp.AmountIn, opp.AssetIn, opp.FlashLoanFee),
		fmt.Sprintf("keep %.6f %s net of gas", opp.NetProfit, opp.AssetIn),
	}

	rec := journal.SimulationRecord{Opportunity: opp, Steps: steps}
	if err := e.journal.Simulation(e.cfg.Journal.SimulationsPath, rec); err != nil {
		e.log.Warn("simulation journal write failed", zap.Error(err))
	}

	e.log.Info("simulated execution",
		zap.String("pair", opp.AssetIn+"/"+opp.AssetOut),
		zap.String("route", opp.BuyVenue+"->"+opp.SellVenue),
		zap.Float64("amount_in", opp.AmountIn),
		zap.Float64("net_profit", opp.NetProfit))
}

func (e *Executor) verifyOwner(ctx context.Context) error {
	e.ownerOnce.Do(func() {
		owner, err := e.settle.Owner(ctx)
		if err != nil {
			e.ownerErr = fmt.Errorf("fetch contract owner: %w", err)
			return
		}
		if owner != e.settle.Sender() {
			e.ownerErr = fmt.Errorf("wallet %s does not own settlement contract (owner %s)",
				e.settle.Sender().Hex(), owner.Hex())
		}
	})
	return e.ownerErr
}
