package engine

import (
	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/types"
)

// Gate holds the thresholds an opportunity must clear before it is handed
// to the executor. All checks are on the opportunity's own reported fields,
// so a gating decision can be replayed from a journal entry.
type Gate struct {
	AutoExecute      bool
	MinProfitPct     float64
	MinLiquidityUSD  float64
	MaxGasPriceGwei  float64
	MaxVolatilityPct float64
}

func GateFromConfig(cfg *config.Config) Gate {
	return Gate{
		AutoExecute:      cfg.AutoExecute,
		MinProfitPct:     cfg.Risk.MinProfitPct,
		MinLiquidityUSD:  cfg.Risk.MinLiquidityUSD,
		MaxGasPriceGwei:  cfg.Risk.MaxGasPriceGwei,
		MaxVolatilityPct: cfg.Risk.MaxVolatilityPct,
	}
}

// ShouldAutoExecute reports whether the opportunity clears every execution
// threshold. The conjunction is strict: one failing condition rejects it.
func (g Gate) ShouldAutoExecute(opp types.Opportunity) bool {
	return g.AutoExecute &&
		opp.ProfitPct >= g.MinProfitPct &&
		opp.LiquidityBuyUSD >= g.MinLiquidityUSD &&
		opp.LiquiditySellUSD >= g.MinLiquidityUSD &&
		opp.GasPriceGwei <= g.MaxGasPriceGwei &&
		opp.Volatility <= g.MaxVolatilityPct
}
