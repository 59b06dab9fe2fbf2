package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/bot"
	"github.com/you/flash-arb/internal/config"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	checkOnce := flag.Bool("check", false, "run a single evaluation pass and exit")
	flag.Parse()

	logger, err := bot.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config invalid", zap.Error(err))
	}

	if err := bot.New(cfg, logger).Run(context.Background(), *checkOnce); err != nil {
		logger.Error("bot exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
