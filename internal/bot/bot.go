// Package bot wires the venues, monitors, engine and executor together and
// drives the evaluation loop.
package bot

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/dex/univ3"
	"github.com/you/flash-arb/internal/dex/v2"
	"github.com/you/flash-arb/internal/engine"
	"github.com/you/flash-arb/internal/execution"
	"github.com/you/flash-arb/internal/flashloan"
	"github.com/you/flash-arb/internal/journal"
	"github.com/you/flash-arb/internal/liquidity"
	"github.com/you/flash-arb/internal/metrics"
	"github.com/you/flash-arb/internal/multicall"
	"github.com/you/flash-arb/internal/pricing"
	"github.com/you/flash-arb/internal/types"
	"github.com/you/flash-arb/internal/volatility"
)

// Bot manages the application's lifecycle and components.
type Bot struct {
	cfg *config.Config
	log *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) *Bot {
	return &Bot{cfg: cfg, log: log}
}

// Run starts the bot. With checkOnce set it runs a single evaluation pass,
// reports what it found and returns; otherwise it loops until a signal or
// context cancellation stops it.
func (b *Bot) Run(ctx context.Context, checkOnce bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		b.log.Warn("received signal, shutting down...")
		cancel()
	}()

	ec, err := ethclient.DialContext(ctx, b.cfg.Chain.RPCHTTP)
	if err != nil {
		return err
	}
	defer ec.Close()

	var mc multicall.IClient
	if addr := common.HexToAddress(b.cfg.Chain.Multicall); addr != (common.Address{}) {
		mc, err = multicall.New(ec, addr)
		if err != nil {
			return err
		}
	}

	assets := b.cfg.AssetTable()
	refVenue, err := b.registerVenues(ec, mc)
	if err != nil {
		return err
	}
	prices := pricing.New(refVenue.Quoter)

	if err := b.preflight(ctx, ec, prices, assets); err != nil {
		return err
	}

	metrics.Serve(ctx, b.cfg.Metrics.ListenAddr, nil, b.log)

	refAsset := assets[b.cfg.Trade.RefAsset]
	liq := liquidity.New(refAsset, b.cfg.Risk.LongTailDiscount, prices, b.log)
	vol := volatility.New(prices, refAsset, b.cfg.VolSampleDelay(), b.cfg.TrendSampleDelay(), b.log)

	var (
		settle *flashloan.Client
		est    engine.GasEstimator
	)
	if b.cfg.ReportOnly() {
		b.log.Warn("report-only mode: no signing key or settlement contract configured")
	} else {
		settle, err = flashloan.New(ec, common.HexToAddress(b.cfg.Chain.FlashLoanContract), b.cfg.Chain.WalletPK, b.log)
		if err != nil {
			return err
		}
		est = settle
	}

	eng := engine.New(b.cfg, ec, est, liq, vol, prices, b.log)
	gate := engine.GateFromConfig(b.cfg)

	writer := journal.NewWriter(b.log)
	defer writer.Close()

	var pub *journal.Publisher
	if b.cfg.Redis.Addr != "" && b.cfg.Redis.Stream != "" {
		pub = journal.NewPublisher(b.cfg)
		defer pub.Close()
	}

	oppCh := make(chan types.Opportunity, 64)
	var exec *execution.Executor
	if settle != nil {
		exec = execution.NewExecutor(b.cfg, settle, writer, eng, b.log)
	} else {
		// typed nil must not reach the interface field
		exec = execution.NewExecutor(b.cfg, nil, writer, eng, b.log)
	}
	execDone := make(chan struct{})
	go func() {
		defer close(execDone)
		exec.Run(ctx, oppCh)
	}()

	if checkOnce {
		b.pass(ctx, eng, gate, writer, pub, oppCh)
		// closing the channel lets the executor drain what was gated
		close(oppCh)
		<-execDone
		return nil
	}

	b.log.Info("bot started",
		zap.Duration("check_interval", b.cfg.CheckInterval()),
		zap.Int("combinations", len(b.cfg.Combinations)),
		zap.Bool("dry_run", b.cfg.DryRun),
		zap.Bool("auto_execute", b.cfg.AutoExecute))

	var running atomic.Bool
	ticker := time.NewTicker(b.cfg.CheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("bot finished")
			return nil
		case <-ticker.C:
			if !running.CompareAndSwap(false, true) {
				metrics.SkippedTicks.Inc()
				b.log.Debug("previous pass still running, tick skipped")
				continue
			}
			go func() {
				defer running.Store(false)
				b.pass(ctx, eng, gate, writer, pub, oppCh)
			}()
		}
	}
}

// pass runs one evaluation sweep and routes the results.
func (b *Bot) pass(ctx context.Context, eng *engine.Engine, gate engine.Gate,
	writer *journal.Writer, pub *journal.Publisher, oppCh chan<- types.Opportunity) {

	opps := eng.CheckOpportunities(ctx)

	for _, opp := range opps {
		if err := writer.Opportunity(b.cfg.Journal.OpportunitiesPath, opp); err != nil {
			b.log.Warn("opportunity journal write failed", zap.Error(err))
		}
		if pub != nil {
			if err := pub.PublishOpportunity(ctx, opp); err != nil {
				b.log.Warn("opportunity publish failed", zap.Error(err))
			}
		}
		if gate.ShouldAutoExecute(opp) {
			select {
			case oppCh <- opp:
			default:
				b.log.Warn("executor backlog full, opportunity dropped",
					zap.String("pair", opp.AssetIn+"/"+opp.AssetOut))
			}
		}
	}

	stats := eng.Stats()
	if stats.Checks%10 == 0 {
		b.log.Info("stats",
			zap.Uint64("checks", stats.Checks),
			zap.Uint64("opportunities", stats.Opportunities),
			zap.Uint64("trades", stats.Trades),
			zap.Float64("best_profit_pct", stats.BestProfitPct))
	}
}

// registerVenues builds a protocol adapter for every configured venue and
// returns the reference venue used for price conversions: the first
// constant-product venue in config order, or simply the first venue.
func (b *Bot) registerVenues(ec *ethclient.Client, mc multicall.IClient) (*core.Venue, error) {
	venueTable := b.cfg.VenueTable()
	var ref *core.Venue
	for _, vcfg := range b.cfg.Venues {
		meta := venueTable[vcfg.ID]
		var venue *core.Venue
		switch meta.Kind {
		case types.ConstantProduct:
			a, err := v2.New(ec, meta, b.log)
			if err != nil {
				return nil, err
			}
			venue = &core.Venue{Meta: meta, Quoter: a, Depth: a}
		case types.ConcentratedLiquidity:
			a, err := univ3.New(ec, meta, mc, b.log)
			if err != nil {
				return nil, err
			}
			venue = &core.Venue{Meta: meta, Quoter: a, Depth: a}
		}
		core.Register(venue)
		if ref == nil || (ref.Meta.Kind != types.ConstantProduct && meta.Kind == types.ConstantProduct) {
			ref = venue
		}
	}
	return ref, nil
}

// preflight proves the RPC endpoint and the reference pricing path work
// before the loop starts. A bot that cannot price gas cannot evaluate
// anything, so failures here are fatal.
func (b *Bot) preflight(ctx context.Context, ec *ethclient.Client, prices *pricing.Source, assets map[string]types.Asset) error {
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	block, err := ec.BlockNumber(cctx)
	if err != nil {
		b.log.Error("rpc connectivity check failed", zap.Error(err))
		return err
	}

	gasAsset := assets[b.cfg.Trade.GasAsset]
	refAsset := assets[b.cfg.Trade.RefAsset]
	price, err := prices.Price(cctx, gasAsset, refAsset)
	if err != nil {
		b.log.Error("reference pricing check failed", zap.Error(err))
		return err
	}

	b.log.Info("connectivity ok",
		zap.Uint64("block", block),
		zap.Float64(gasAsset.Symbol+"_"+refAsset.Symbol, core.ToHuman(price, refAsset.Decimals)))
	return nil
}

// NewLogger builds the production JSON logger used by all binaries.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	return cfg.Build()
}
