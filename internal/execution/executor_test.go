package execution

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/journal"
	"github.com/you/flash-arb/internal/types"
)

type fakeSettler struct {
	owner   common.Address
	sender  common.Address
	txHash  string
	gasUsed uint64
	execErr error

	executed []*big.Int
}

func (f *fakeSettler) Owner(_ context.Context) (common.Address, error) { return f.owner, nil }
func (f *fakeSettler) Balance(_ context.Context, _ common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f *fakeSettler) Sender() common.Address { return f.sender }
func (f *fakeSettler) Execute(_ context.Context, _ common.Address, amount *big.Int) (string, uint64, error) {
	f.executed = append(f.executed, amount)
	return f.txHash, f.gasUsed, f.execErr
}

type fakeJournal struct {
	trades      []journal.TradeRecord
	simulations []journal.SimulationRecord
}

func (f *fakeJournal) Trade(_ string, rec journal.TradeRecord) error {
	f.trades = append(f.trades, rec)
	return nil
}
func (f *fakeJournal) Simulation(_ string, rec journal.SimulationRecord) error {
	f.simulations = append(f.simulations, rec)
	return nil
}

type fakeStats struct{ trades int }

func (f *fakeStats) RecordTrade() { f.trades++ }

func executorConfig(dryRun bool) *config.Config {
	cfg := &config.Config{
		DryRun: dryRun,
		Assets: []config.AssetCfg{
			{Symbol: "USDC", Address: "0x0000000000000000000000000000000000000001", Decimals: 6},
		},
	}
	cfg.Journal.TradesPath = "trades.log"
	cfg.Journal.SimulationsPath = "simulations.log"
	return cfg
}

func gatedOpportunity() types.Opportunity {
	return types.Opportunity{
		AssetIn:   "USDC",
		AssetOut:  "MEME",
		BuyVenue:  "uniswap",
		SellVenue: "camelot",
		AmountIn:  1000,
		NetProfit: 13.85,
		ProfitPct: 1.385,
	}
}

// feedOne pushes a single opportunity through Run and waits for the drain
// that closing the channel triggers.
func feedOne(t *testing.T, e *Executor, opp types.Opportunity) {
	t.Helper()
	in := make(chan types.Opportunity, 1)
	in <- opp
	close(in)

	done := make(chan struct{})
	go func() {
		e.Run(context.Background(), in)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("executor did not stop after channel close")
	}
}

func TestRunDrainsBacklogOnClose(t *testing.T) {
	jnl := &fakeJournal{}
	e := NewExecutor(executorConfig(true), nil, jnl, &fakeStats{}, zap.NewNop())

	in := make(chan types.Opportunity, 4)
	for i := 0; i < 3; i++ {
		in <- gatedOpportunity()
	}
	close(in)

	done := make(chan struct{})
	go func() {
		e.Run(context.Background(), in)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("executor did not stop after channel close")
	}
	// everything queued before the close is journaled, nothing dropped
	assert.Len(t, jnl.simulations, 3)
}

func TestExecuteConfirmedTrade(t *testing.T) {
	wallet := common.HexToAddress("0xaa")
	settle := &fakeSettler{owner: wallet, sender: wallet, txHash: "0xdead", gasUsed: 321000}
	jnl := &fakeJournal{}
	stats := &fakeStats{}
	e := NewExecutor(executorConfig(false), settle, jnl, stats, zap.NewNop())

	feedOne(t, e, gatedOpportunity())

	require.Len(t, settle.executed, 1)
	// 1000 USDC at 6 decimals.
	assert.Equal(t, big.NewInt(1_000_000_000), settle.executed[0])

	require.Len(t, jnl.trades, 1)
	assert.Equal(t, "confirmed", jnl.trades[0].Status)
	assert.Equal(t, "0xdead", jnl.trades[0].TxHash)
	assert.Equal(t, uint64(321000), jnl.trades[0].GasUsed)
	assert.Equal(t, 1, stats.trades)
}

func TestExecuteFailedTradeJournaled(t *testing.T) {
	wallet := common.HexToAddress("0xaa")
	settle := &fakeSettler{owner: wallet, sender: wallet, txHash: "0xbeef", execErr: errors.New("transaction reverted")}
	jnl := &fakeJournal{}
	stats := &fakeStats{}
	e := NewExecutor(executorConfig(false), settle, jnl, stats, zap.NewNop())

	feedOne(t, e, gatedOpportunity())

	require.Len(t, jnl.trades, 1)
	assert.Equal(t, "failed", jnl.trades[0].Status)
	assert.Contains(t, jnl.trades[0].Error, "reverted")
	assert.Zero(t, stats.trades)
}

func TestDryRunSimulatesInsteadOfExecuting(t *testing.T) {
	wallet := common.HexToAddress("0xaa")
	settle := &fakeSettler{owner: wallet, sender: wallet}
	jnl := &fakeJournal{}
	e := NewExecutor(executorConfig(true), settle, jnl, &fakeStats{}, zap.NewNop())

	feedOne(t, e, gatedOpportunity())

	assert.Empty(t, settle.executed)
	assert.Empty(t, jnl.trades)
	require.Len(t, jnl.simulations, 1)
	assert.Len(t, jnl.simulations[0].Steps, 5)
}

func TestNilSettlerAlwaysSimulates(t *testing.T) {
	jnl := &fakeJournal{}
	e := NewExecutor(executorConfig(false), nil, jnl, &fakeStats{}, zap.NewNop())

	feedOne(t, e, gatedOpportunity())

	require.Len(t, jnl.simulations, 1)
}

func TestOwnerMismatchFallsBackToSimulation(t *testing.T) {
	settle := &fakeSettler{
		owner:  common.HexToAddress("0xaa"),
		sender: common.HexToAddress("0xbb"),
	}
	jnl := &fakeJournal{}
	stats := &fakeStats{}
	e := NewExecutor(executorConfig(false), settle, jnl, stats, zap.NewNop())

	feedOne(t, e, gatedOpportunity())

	assert.Empty(t, settle.executed)
	assert.Empty(t, jnl.trades)
	require.Len(t, jnl.simulations, 1)
	assert.Zero(t, stats.trades)
}
