package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/types"
)

// Publisher mirrors detected opportunities onto a Redis stream so external
// dashboards and alerting can consume them live.
type Publisher struct {
	rdb    *redis.Client
	stream string
}

func NewPublisher(cfg *config.Config) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	})
	return &Publisher{
		rdb:    rdb,
		stream: cfg.Redis.Stream,
	}
}

func (p *Publisher) PublishOpportunity(ctx context.Context, opp types.Opportunity) error {
	payload, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("marshal opportunity: %w", err)
	}
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"pair":       opp.AssetIn + "/" + opp.AssetOut,
			"profit_pct": opp.ProfitPct,
			"payload":    string(payload),
		},
	}).Err()
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}
