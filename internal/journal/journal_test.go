package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/types"
)

func sampleOpportunity() types.Opportunity {
	return types.Opportunity{
		AssetIn:   "USDC",
		AssetOut:  "WETH",
		BuyVenue:  "uniswap",
		SellVenue: "camelot",
		AmountIn:  1000,
		NetProfit: 12.5,
		ProfitPct: 1.25,
		Ts:        time.Now(),
	}
}

func TestWriterAppendsNDJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opportunities.ndjson")
	w := NewWriter(zap.NewNop())
	defer w.Close()

	require.NoError(t, w.Opportunity(path, sampleOpportunity()))
	require.NoError(t, w.Opportunity(path, sampleOpportunity()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var opp types.Opportunity
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &opp))
		assert.Equal(t, "USDC", opp.AssetIn)
		assert.Equal(t, 1.25, opp.ProfitPct)
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestWriterCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "nested", "trades.ndjson")
	w := NewWriter(zap.NewNop())
	defer w.Close()

	rec := TradeRecord{Opportunity: sampleOpportunity(), TxHash: "0xabc", Status: "confirmed", GasUsed: 321000}
	require.NoError(t, w.Trade(path, rec))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got TradeRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "0xabc", got.TxHash)
	assert.Equal(t, "confirmed", got.Status)
	assert.Equal(t, uint64(321000), got.GasUsed)
}

func TestWriterEmptyPathIsNoop(t *testing.T) {
	w := NewWriter(zap.NewNop())
	defer w.Close()
	assert.NoError(t, w.Opportunity("", sampleOpportunity()))
}

func TestPublisherWritesStream(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.Stream = "flasharb:opportunities"

	p := NewPublisher(cfg)
	defer p.Close()

	require.NoError(t, p.PublishOpportunity(context.Background(), sampleOpportunity()))

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	entries, err := rdb.XRange(context.Background(), "flasharb:opportunities", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "USDC/WETH", entries[0].Values["pair"])

	var opp types.Opportunity
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["payload"].(string)), &opp))
	assert.Equal(t, 12.5, opp.NetProfit)
}
