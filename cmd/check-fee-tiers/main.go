package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/dex/univ3"
	"github.com/you/flash-arb/internal/types"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config")
	tiersStr := flag.String("tiers", "100,500,3000,10000", "fee tiers to test, comma-separated")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	tiers := parseTiers(*tiersStr)
	ctx := context.Background()

	ec, err := ethclient.DialContext(ctx, cfg.Chain.RPCHTTP)
	if err != nil {
		panic(err)
	}
	defer ec.Close()

	assets := cfg.AssetTable()

	fmt.Printf("RPC: %s\n", cfg.Chain.RPCHTTP)
	fmt.Printf("Testing tiers: %v\n\n", tiers)

	venues := cfg.VenueTable()
	// report in config order, not map order
	for _, v := range cfg.Venues {
		meta := venues[v.ID]
		if meta.Kind != types.ConcentratedLiquidity {
			continue
		}
		adapter, err := univ3.New(ec, meta, nil, zap.NewNop())
		if err != nil {
			panic(err)
		}
		for _, combo := range cfg.Combos() {
			assetIn, assetOut := assets[combo.AssetIn], assets[combo.AssetOut]
			present, err := adapter.CheckFeeTiers(ctx, assetIn, assetOut, tiers)
			if err != nil {
				fmt.Printf("%-10s %s/%s error: %v\n", meta.ID, assetIn.Symbol, assetOut.Symbol, err)
				continue
			}
			if len(present) == 0 {
				fmt.Printf("%-10s %s/%s no pools on given tiers\n", meta.ID, assetIn.Symbol, assetOut.Symbol)
				continue
			}
			fmt.Printf("%-10s %s/%s tiers: %v\n", meta.ID, assetIn.Symbol, assetOut.Symbol, present)
		}
	}
}

func parseTiers(s string) []uint32 {
	parts := strings.Split(s, ",")
	var out []uint32
	for _, p := range parts {
		p = strings.TrimSpace(p)
		var v uint32
		fmt.Sscanf(p, "%d", &v)
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}
