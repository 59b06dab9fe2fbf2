package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ChecksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_checks_total",
		Help: "Number of completed evaluation passes",
	})

	OpportunitiesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_opportunities_total",
		Help: "Number of profitable opportunities found",
	})

	TradesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_trades_total",
		Help: "Number of flash loan executions attempted",
	})

	SkippedTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_skipped_ticks_total",
		Help: "Evaluation ticks skipped because the previous pass was still running",
	})

	QuoterErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_quoter_errors_total",
		Help: "Number of quoter failures",
	})

	GasPriceGwei = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_gas_price_gwei",
		Help: "Last observed gas price in gwei",
	})

	BestProfitPct = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_best_profit_pct",
		Help: "Best net profit percentage seen in the last pass",
	})

	EvalLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flasharb_eval_latency_seconds",
		Help:    "Time to complete a full evaluation pass",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		ChecksTotal,
		OpportunitiesTotal,
		TradesTotal,
		SkippedTicks,
		QuoterErrors,
		GasPriceGwei,
		BestProfitPct,
		EvalLatency,
	)
}
