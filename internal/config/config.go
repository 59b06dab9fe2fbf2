package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/you/flash-arb/internal/types"
	"gopkg.in/yaml.v3"
)

type AssetCfg struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals int    `yaml:"decimals"`
	LongTail bool   `yaml:"long_tail"`
}

type VenueCfg struct {
	ID       string   `yaml:"id"`
	Kind     string   `yaml:"kind"` // constant-product | concentrated-liquidity
	Router   string   `yaml:"router"`
	Factory  string   `yaml:"factory"`
	Quoter   string   `yaml:"quoter"`
	FeeTiers []uint32 `yaml:"fee_tiers"`
}

type CombinationCfg struct {
	TokenIn  string `yaml:"token_in"`
	TokenOut string `yaml:"token_out"`
	DexIn    string `yaml:"dex_in"`
	DexOut   string `yaml:"dex_out"`
}

type Config struct {
	DryRun      bool `yaml:"dry_run"`
	AutoExecute bool `yaml:"auto_execute"`

	Chain struct {
		RPCHTTP           string `yaml:"rpc_http"`
		WalletPK          string `yaml:"wallet_pk"`
		FlashLoanContract string `yaml:"flashloan_contract"`
		// Multicall enables batched fee-tier quoting when set.
		Multicall string `yaml:"multicall"`
	} `yaml:"chain"`

	Assets       []AssetCfg       `yaml:"assets"`
	Venues       []VenueCfg       `yaml:"venues"`
	Combinations []CombinationCfg `yaml:"combinations"`

	Trade struct {
		// Notional flash-loan amounts to test, in human units of the
		// combination's input asset.
		Amounts []float64 `yaml:"amounts"`
		// RefAsset is the USD-pegged asset liquidity is denominated in.
		RefAsset string `yaml:"ref_asset"`
		// GasAsset is the chain's native wrapped asset, used to convert gas
		// costs into the trade's input asset.
		GasAsset string `yaml:"gas_asset"`
	} `yaml:"trade"`

	Risk struct {
		MinProfitPct        float64 `yaml:"min_profit_pct"`
		MinLiquidityUSD     float64 `yaml:"min_liquidity_usd"`
		MaxGasPriceGwei     float64 `yaml:"max_gas_price_gwei"`
		MaxVolatilityPct    float64 `yaml:"max_volatility_pct"`
		MaxLossPct          float64 `yaml:"max_loss_pct"`
		SlippageThousandths int64   `yaml:"slippage_thousandths"`
		FlashLoanFeeBps10k  int64   `yaml:"flashloan_fee_bps10k"`
		LongTailDiscount    float64 `yaml:"long_tail_discount"`
	} `yaml:"risk"`

	Gas struct {
		FallbackUnits uint64 `yaml:"fallback_units"`
	} `yaml:"gas"`

	Timings struct {
		CheckIntervalMs int `yaml:"check_interval_ms"`
		VolSampleMs     int `yaml:"vol_sample_ms"`
		TrendSampleMs   int `yaml:"trend_sample_ms"`
	} `yaml:"timings"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	Journal struct {
		OpportunitiesPath string `yaml:"opportunities_path"`
		TradesPath        string `yaml:"trades_path"`
		SimulationsPath   string `yaml:"simulations_path"`
	} `yaml:"journal"`

	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Stream   string `yaml:"stream"`
	} `yaml:"redis"`
}

func Load(path string) (*Config, error) {
	// .env is optional; deployments keep RPC and keys there.
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if v := os.Getenv("RPC_URL"); v != "" {
		c.Chain.RPCHTTP = v
	}
	if v := os.Getenv("PRIVATE_KEY"); v != "" {
		c.Chain.WalletPK = v
	}
	if v := os.Getenv("FLASHLOAN_CONTRACT_ADDRESS"); v != "" {
		c.Chain.FlashLoanContract = v
	}

	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if len(c.Trade.Amounts) == 0 {
		c.Trade.Amounts = []float64{1000, 5000, 10000}
	}
	if c.Trade.RefAsset == "" {
		c.Trade.RefAsset = "USDC"
	}
	if c.Trade.GasAsset == "" {
		c.Trade.GasAsset = "WETH"
	}
	if c.Risk.MinProfitPct == 0 {
		c.Risk.MinProfitPct = 0.5
	}
	if c.Risk.MinLiquidityUSD == 0 {
		c.Risk.MinLiquidityUSD = 50_000
	}
	if c.Risk.MaxGasPriceGwei == 0 {
		c.Risk.MaxGasPriceGwei = 0.5
	}
	if c.Risk.MaxVolatilityPct == 0 {
		c.Risk.MaxVolatilityPct = 5.0
	}
	if c.Risk.MaxLossPct == 0 {
		c.Risk.MaxLossPct = 1.0
	}
	if c.Risk.SlippageThousandths == 0 {
		c.Risk.SlippageThousandths = 5 // 0.5%
	}
	if c.Risk.FlashLoanFeeBps10k == 0 {
		c.Risk.FlashLoanFeeBps10k = 9 // Aave 0.09%
	}
	if c.Risk.LongTailDiscount == 0 {
		c.Risk.LongTailDiscount = 0.10
	}
	if c.Gas.FallbackUnits == 0 {
		c.Gas.FallbackUnits = 500_000
	}
	if c.Timings.CheckIntervalMs == 0 {
		c.Timings.CheckIntervalMs = 10_000
	}
	if c.Timings.VolSampleMs == 0 {
		c.Timings.VolSampleMs = 1_000
	}
	if c.Timings.TrendSampleMs == 0 {
		c.Timings.TrendSampleMs = 5_000
	}
	if c.Journal.OpportunitiesPath == "" {
		c.Journal.OpportunitiesPath = "opportunities.log"
	}
	if c.Journal.TradesPath == "" {
		c.Journal.TradesPath = "trades.log"
	}
	if c.Journal.SimulationsPath == "" {
		c.Journal.SimulationsPath = "simulations.log"
	}
}

// Validate rejects configurations the evaluator must not run with: missing
// RPC, empty asset or venue tables, dangling symbol or venue references.
func (c *Config) Validate() error {
	if c.Chain.RPCHTTP == "" {
		return fmt.Errorf("chain.rpc_http is required")
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("at least one asset is required")
	}
	if len(c.Venues) == 0 {
		return fmt.Errorf("at least one venue is required")
	}
	if len(c.Combinations) == 0 {
		return fmt.Errorf("at least one trading combination is required")
	}

	assets := map[string]bool{}
	for _, a := range c.Assets {
		if a.Symbol == "" {
			return fmt.Errorf("asset with empty symbol")
		}
		if common.HexToAddress(a.Address) == (common.Address{}) {
			return fmt.Errorf("asset %s: zero address", a.Symbol)
		}
		if a.Decimals <= 0 {
			return fmt.Errorf("asset %s: decimals must be positive", a.Symbol)
		}
		assets[a.Symbol] = true
	}

	venues := map[string]bool{}
	for _, v := range c.Venues {
		switch types.ProtocolKind(v.Kind) {
		case types.ConstantProduct:
			if common.HexToAddress(v.Router) == (common.Address{}) {
				return fmt.Errorf("venue %s: router address is required", v.ID)
			}
			if common.HexToAddress(v.Factory) == (common.Address{}) {
				return fmt.Errorf("venue %s: factory address is required", v.ID)
			}
		case types.ConcentratedLiquidity:
			if common.HexToAddress(v.Quoter) == (common.Address{}) {
				return fmt.Errorf("venue %s: quoter address is required", v.ID)
			}
			if common.HexToAddress(v.Factory) == (common.Address{}) {
				return fmt.Errorf("venue %s: factory address is required", v.ID)
			}
		default:
			return fmt.Errorf("venue %s: unknown kind %q", v.ID, v.Kind)
		}
		venues[v.ID] = true
	}

	for _, sym := range []string{c.Trade.RefAsset, c.Trade.GasAsset} {
		if !assets[sym] {
			return fmt.Errorf("asset %s referenced but not configured", sym)
		}
	}
	for i, cb := range c.Combinations {
		if !assets[cb.TokenIn] {
			return fmt.Errorf("combination %d: unknown token_in %q", i, cb.TokenIn)
		}
		if !assets[cb.TokenOut] {
			return fmt.Errorf("combination %d: unknown token_out %q", i, cb.TokenOut)
		}
		if !venues[cb.DexIn] {
			return fmt.Errorf("combination %d: unknown dex_in %q", i, cb.DexIn)
		}
		if !venues[cb.DexOut] {
			return fmt.Errorf("combination %d: unknown dex_out %q", i, cb.DexOut)
		}
	}
	return nil
}

// AssetTable resolves the configured assets into the runtime representation.
func (c *Config) AssetTable() map[string]types.Asset {
	out := make(map[string]types.Asset, len(c.Assets))
	for _, a := range c.Assets {
		out[a.Symbol] = types.Asset{
			Address:  common.HexToAddress(a.Address),
			Symbol:   a.Symbol,
			Decimals: a.Decimals,
			LongTail: a.LongTail,
		}
	}
	return out
}

// VenueTable resolves the configured venues into the runtime representation.
func (c *Config) VenueTable() map[string]types.Venue {
	out := make(map[string]types.Venue, len(c.Venues))
	for _, v := range c.Venues {
		tiers := v.FeeTiers
		if len(tiers) == 0 && types.ProtocolKind(v.Kind) == types.ConcentratedLiquidity {
			tiers = []uint32{500, 3000, 10000}
		}
		out[v.ID] = types.Venue{
			ID:       v.ID,
			Kind:     types.ProtocolKind(v.Kind),
			Router:   common.HexToAddress(v.Router),
			Factory:  common.HexToAddress(v.Factory),
			Quoter:   common.HexToAddress(v.Quoter),
			FeeTiers: tiers,
		}
	}
	return out
}

func (c *Config) Combos() []types.Combination {
	out := make([]types.Combination, 0, len(c.Combinations))
	for _, cb := range c.Combinations {
		out = append(out, types.Combination{
			AssetIn:   cb.TokenIn,
			AssetOut:  cb.TokenOut,
			BuyVenue:  cb.DexIn,
			SellVenue: cb.DexOut,
		})
	}
	return out
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Timings.CheckIntervalMs) * time.Millisecond
}
func (c *Config) VolSampleDelay() time.Duration {
	return time.Duration(c.Timings.VolSampleMs) * time.Millisecond
}
func (c *Config) TrendSampleDelay() time.Duration {
	return time.Duration(c.Timings.TrendSampleMs) * time.Millisecond
}

// ReportOnly is true when execution cannot happen at all: without a signing
// key or a settlement contract the bot can only ever observe.
func (c *Config) ReportOnly() bool {
	return c.Chain.WalletPK == "" || c.Chain.FlashLoanContract == ""
}
