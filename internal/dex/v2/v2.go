// Package v2 quotes constant-product (x*y=k) venues. Two paths are
// supported: the venue's own getAmountsOut entrypoint, and a direct
// computation from pool reserves. The reserve path survives adapter-level
// reverts on routers with nonstandard fee hooks, so it is the fallback.
package v2

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/types"
)

const routerABI = `[
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}
]`

const factoryABI = `[
 {"inputs":[{"internalType":"address","name":"tokenA","type":"address"},{"internalType":"address","name":"tokenB","type":"address"}],"name":"getPair","outputs":[{"internalType":"address","name":"pair","type":"address"}],"stateMutability":"view","type":"function"}
]`

const pairABI = `[
 {"inputs":[],"name":"getReserves","outputs":[{"internalType":"uint112","name":"reserve0","type":"uint112"},{"internalType":"uint112","name":"reserve1","type":"uint112"},{"internalType":"uint32","name":"blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var (
	fee997  = big.NewInt(997)
	fee1000 = big.NewInt(1000)
)

// AmountOut computes the constant-product swap output with the standard
// 0.3% fee: floor(amountIn*997*reserveOut / (reserveIn*1000 + amountIn*997)).
func AmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return big.NewInt(0)
	}
	inWithFee := new(big.Int).Mul(amountIn, fee997)
	num := new(big.Int).Mul(inWithFee, reserveOut)
	den := new(big.Int).Add(new(big.Int).Mul(reserveIn, fee1000), inWithFee)
	return num.Div(num, den)
}

type Adapter struct {
	ec   *ethclient.Client
	log  *zap.Logger
	meta types.Venue
	rabi abi.ABI
	fabi abi.ABI
	pabi abi.ABI
}

func New(ec *ethclient.Client, meta types.Venue, log *zap.Logger) (*Adapter, error) {
	rabi, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	fabi, err := abi.JSON(strings.NewReader(factoryABI))
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}
	pabi, err := abi.JSON(strings.NewReader(pairABI))
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	return &Adapter{ec: ec, log: log, meta: meta, rabi: rabi, fabi: fabi, pabi: pabi}, nil
}

// Quote prices assetIn -> assetOut. The router path is tried first; on
// revert the adapter recomputes from reserves.
func (a *Adapter) Quote(ctx context.Context, assetIn, assetOut types.Asset, amountIn *big.Int) (core.Quote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return core.Quote{}, fmt.Errorf("%w: non-positive amountIn", core.ErrNoQuote)
	}

	out, err := a.quoteViaRouter(ctx, assetIn.Address, assetOut.Address, amountIn)
	if err != nil {
		a.log.Debug("router quote failed, falling back to reserves",
			zap.String("venue", a.meta.ID), zap.Error(err))
		out, err = a.quoteViaReserves(ctx, assetIn, assetOut, amountIn)
		if err != nil {
			return core.Quote{}, err
		}
	}
	if out.Sign() <= 0 {
		return core.Quote{}, fmt.Errorf("%w: zero output", core.ErrNoQuote)
	}
	return core.Quote{AmountOut: out}, nil
}

func (a *Adapter) quoteViaRouter(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	path := []common.Address{tokenIn, tokenOut}
	data, err := a.rabi.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("pack getAmountsOut: %w", err)
	}
	raw, err := a.ec.CallContract(ctx, ethereum.CallMsg{To: &a.meta.Router, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: getAmountsOut: %v", core.ErrNoQuote, err)
	}
	outs, err := a.rabi.Methods["getAmountsOut"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, fmt.Errorf("%w: decode getAmountsOut", core.ErrNoQuote)
	}
	amounts, ok := outs[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("%w: bad amounts length", core.ErrNoQuote)
	}
	return amounts[len(amounts)-1], nil
}

func (a *Adapter) quoteViaReserves(ctx context.Context, assetIn, assetOut types.Asset, amountIn *big.Int) (*big.Int, error) {
	reserveIn, reserveOut, err := a.Reserves(ctx, assetIn, assetOut)
	if err != nil {
		return nil, err
	}
	return AmountOut(amountIn, reserveIn, reserveOut), nil
}

// Reserves reads the pair's reserves ordered as (assetA, assetB), resolving
// the pool's token0 against assetA.
func (a *Adapter) Reserves(ctx context.Context, assetA, assetB types.Asset) (*big.Int, *big.Int, error) {
	pair, err := a.pairAddress(ctx, assetA.Address, assetB.Address)
	if err != nil {
		return nil, nil, err
	}

	data, _ := a.pabi.Pack("getReserves")
	raw, err := a.ec.CallContract(ctx, ethereum.CallMsg{To: &pair, Data: data}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: getReserves: %v", core.ErrNoQuote, err)
	}
	outs, err := a.pabi.Methods["getReserves"].Outputs.Unpack(raw)
	if err != nil || len(outs) < 2 {
		return nil, nil, fmt.Errorf("%w: decode getReserves", core.ErrNoQuote)
	}
	reserve0, ok0 := outs[0].(*big.Int)
	reserve1, ok1 := outs[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, nil, fmt.Errorf("%w: unexpected reserve types", core.ErrNoQuote)
	}
	if reserve0.Sign() == 0 && reserve1.Sign() == 0 {
		return nil, nil, fmt.Errorf("%w: empty pool", core.ErrNoQuote)
	}

	token0, err := a.token0(ctx, pair)
	if err != nil {
		return nil, nil, err
	}
	if token0 == assetA.Address {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}

func (a *Adapter) pairAddress(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	data, _ := a.fabi.Pack("getPair", tokenA, tokenB)
	raw, err := a.ec.CallContract(ctx, ethereum.CallMsg{To: &a.meta.Factory, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: getPair: %v", core.ErrNoQuote, err)
	}
	outs, err := a.fabi.Methods["getPair"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return common.Address{}, fmt.Errorf("%w: decode getPair", core.ErrNoQuote)
	}
	pair := outs[0].(common.Address)
	if pair == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: pair does not exist", core.ErrNoQuote)
	}
	return pair, nil
}

func (a *Adapter) token0(ctx context.Context, pair common.Address) (common.Address, error) {
	data, _ := a.pabi.Pack("token0")
	raw, err := a.ec.CallContract(ctx, ethereum.CallMsg{To: &pair, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: token0: %v", core.ErrNoQuote, err)
	}
	outs, err := a.pabi.Methods["token0"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return common.Address{}, fmt.Errorf("%w: decode token0", core.ErrNoQuote)
	}
	return outs[0].(common.Address), nil
}
