// Package univ3 quotes concentrated-liquidity venues. Each configured fee
// tier is quoted independently through the venue's read-only quoter; the
// tier with the best output wins and is recorded on the quote so the price
// can be reproduced later. One reverting tier never invalidates the others.
package univ3

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/multicall"
	"github.com/you/flash-arb/internal/types"
)

const quoterABI = `[
 {"inputs":[
   {"internalType":"address","name":"tokenIn","type":"address"},
   {"internalType":"address","name":"tokenOut","type":"address"},
   {"internalType":"uint24","name":"fee","type":"uint24"},
   {"internalType":"uint256","name":"amountIn","type":"uint256"},
   {"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],
  "name":"quoteExactInputSingle",
  "outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],
  "stateMutability":"nonpayable","type":"function"}
]`

const factoryABI = `[
 {"inputs":[
   {"internalType":"address","name":"tokenA","type":"address"},
   {"internalType":"address","name":"tokenB","type":"address"},
   {"internalType":"uint24","name":"fee","type":"uint24"}],
  "name":"getPool",
  "outputs":[{"internalType":"address","name":"pool","type":"address"}],
  "stateMutability":"view","type":"function"}
]`

const erc20ABI = `[
 {"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

type poolKey struct {
	a, b common.Address
	fee  uint32
}

type Adapter struct {
	ec   *ethclient.Client
	log  *zap.Logger
	meta types.Venue
	mc   multicall.IClient // nil: fall back to one RPC per tier
	qabi abi.ABI
	fabi abi.ABI
	eabi abi.ABI

	mu    sync.Mutex
	pools map[poolKey]common.Address
}

func New(ec *ethclient.Client, meta types.Venue, mc multicall.IClient, log *zap.Logger) (*Adapter, error) {
	qabi, err := abi.JSON(strings.NewReader(quoterABI))
	if err != nil {
		return nil, fmt.Errorf("parse quoter abi: %w", err)
	}
	fabi, err := abi.JSON(strings.NewReader(factoryABI))
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}
	eabi, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &Adapter{
		ec:    ec,
		log:   log,
		meta:  meta,
		mc:    mc,
		qabi:  qabi,
		fabi:  fabi,
		eabi:  eabi,
		pools: make(map[poolKey]common.Address),
	}, nil
}

// Quote prices assetIn -> assetOut across all configured fee tiers and keeps
// the best output.
func (a *Adapter) Quote(ctx context.Context, assetIn, assetOut types.Asset, amountIn *big.Int) (core.Quote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return core.Quote{}, fmt.Errorf("%w: non-positive amountIn", core.ErrNoQuote)
	}
	tiers := a.meta.FeeTiers
	if len(tiers) == 0 {
		return core.Quote{}, fmt.Errorf("%w: no fee tiers configured", core.ErrNoQuote)
	}

	if a.mc != nil {
		if q, err := a.quoteBatched(ctx, assetIn.Address, assetOut.Address, amountIn, tiers); err == nil {
			return q, nil
		}
		// Batch transport failure is not a per-tier revert; retry tier by tier.
		a.log.Debug("multicall quote failed, retrying per tier", zap.String("venue", a.meta.ID))
	}
	return a.quoteSequential(ctx, assetIn.Address, assetOut.Address, amountIn, tiers)
}

func (a *Adapter) quoteSequential(ctx context.Context, in, out common.Address, amountIn *big.Int, tiers []uint32) (core.Quote, error) {
	var best core.Quote
	for _, fee := range tiers {
		amount, err := a.quoteTier(ctx, in, out, amountIn, fee)
		if err != nil {
			a.log.Debug("fee tier quote failed",
				zap.String("venue", a.meta.ID), zap.Uint32("fee", fee), zap.Error(err))
			continue
		}
		if best.AmountOut == nil || amount.Cmp(best.AmountOut) > 0 {
			best = core.Quote{AmountOut: amount, FeeTier: fee}
		}
	}
	if best.AmountOut == nil || best.AmountOut.Sign() <= 0 {
		return core.Quote{}, fmt.Errorf("%w: no successful quote on any fee tier", core.ErrNoQuote)
	}
	return best, nil
}

func (a *Adapter) quoteBatched(ctx context.Context, in, out common.Address, amountIn *big.Int, tiers []uint32) (core.Quote, error) {
	calls := make([]multicall.Call, 0, len(tiers))
	for _, fee := range tiers {
		data, err := a.qabi.Pack("quoteExactInputSingle", in, out, big.NewInt(int64(fee)), amountIn, big.NewInt(0))
		if err != nil {
			return core.Quote{}, fmt.Errorf("pack quoteExactInputSingle: %w", err)
		}
		calls = append(calls, multicall.Call{Target: a.meta.Quoter, CallData: data})
	}

	results, err := a.mc.TryAggregate(ctx, calls)
	if err != nil {
		return core.Quote{}, err
	}

	var best core.Quote
	for i, res := range results {
		if !res.Success {
			continue
		}
		outs, err := a.qabi.Methods["quoteExactInputSingle"].Outputs.Unpack(res.Data)
		if err != nil || len(outs) == 0 {
			continue
		}
		amount, ok := outs[0].(*big.Int)
		if !ok || amount.Sign() <= 0 {
			continue
		}
		if best.AmountOut == nil || amount.Cmp(best.AmountOut) > 0 {
			best = core.Quote{AmountOut: amount, FeeTier: tiers[i]}
		}
	}
	if best.AmountOut == nil {
		return core.Quote{}, fmt.Errorf("%w: no successful quote on any fee tier", core.ErrNoQuote)
	}
	return best, nil
}

func (a *Adapter) quoteTier(ctx context.Context, in, out common.Address, amountIn *big.Int, fee uint32) (*big.Int, error) {
	data, err := a.qabi.Pack("quoteExactInputSingle", in, out, big.NewInt(int64(fee)), amountIn, big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("pack quoteExactInputSingle: %w", err)
	}
	raw, err := a.ec.CallContract(ctx, ethereum.CallMsg{To: &a.meta.Quoter, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("quoteExactInputSingle fee=%d: %w", fee, err)
	}
	outs, err := a.qabi.Methods["quoteExactInputSingle"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, fmt.Errorf("decode quoteExactInputSingle fee=%d", fee)
	}
	amount, ok := outs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected output type fee=%d", fee)
	}
	return amount, nil
}

// Reserves approximates pool depth by the pool contract's token balances on
// the first fee tier that has a pool. Concentrated-liquidity reserves are
// not directly comparable to constant-product ones, but token balances give
// a usable USD depth for the same haircut treatment downstream.
func (a *Adapter) Reserves(ctx context.Context, assetA, assetB types.Asset) (*big.Int, *big.Int, error) {
	for _, fee := range a.meta.FeeTiers {
		pool, err := a.poolAddress(ctx, assetA.Address, assetB.Address, fee)
		if err != nil {
			continue
		}
		balA, err := a.balanceOf(ctx, assetA.Address, pool)
		if err != nil {
			continue
		}
		balB, err := a.balanceOf(ctx, assetB.Address, pool)
		if err != nil {
			continue
		}
		return balA, balB, nil
	}
	return nil, nil, fmt.Errorf("%w: no pool on any fee tier", core.ErrNoQuote)
}

// CheckFeeTiers reports which of the given tiers have a deployed pool for
// the pair. Used by the preflight tool, not by the evaluation path.
func (a *Adapter) CheckFeeTiers(ctx context.Context, assetA, assetB types.Asset, tiers []uint32) ([]uint32, error) {
	var present []uint32
	for _, fee := range tiers {
		if _, err := a.poolAddress(ctx, assetA.Address, assetB.Address, fee); err == nil {
			present = append(present, fee)
		}
	}
	return present, nil
}

func (a *Adapter) poolAddress(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	key := poolKey{a: tokenA, b: tokenB, fee: fee}
	a.mu.Lock()
	if addr, ok := a.pools[key]; ok {
		a.mu.Unlock()
		return addr, nil
	}
	a.mu.Unlock()

	data, err := a.fabi.Pack("getPool", tokenA, tokenB, big.NewInt(int64(fee)))
	if err != nil {
		return common.Address{}, fmt.Errorf("pack getPool: %w", err)
	}
	raw, err := a.ec.CallContract(ctx, ethereum.CallMsg{To: &a.meta.Factory, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: getPool fee=%d: %v", core.ErrNoQuote, fee, err)
	}
	outs, err := a.fabi.Methods["getPool"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return common.Address{}, fmt.Errorf("%w: decode getPool fee=%d", core.ErrNoQuote, fee)
	}
	pool := outs[0].(common.Address)
	if pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: no pool for fee %d", core.ErrNoQuote, fee)
	}

	a.mu.Lock()
	a.pools[key] = pool
	a.mu.Unlock()
	return pool, nil
}

func (a *Adapter) balanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	data, _ := a.eabi.Pack("balanceOf", holder)
	raw, err := a.ec.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: balanceOf: %v", core.ErrNoQuote, err)
	}
	outs, err := a.eabi.Methods["balanceOf"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, fmt.Errorf("%w: decode balanceOf", core.ErrNoQuote)
	}
	bal, ok := outs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected balance type", core.ErrNoQuote)
	}
	return bal, nil
}
