package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/richardliu001/wallet-ledger/internal/config"
	"github.com/richardliu001/wallet-ledger/internal/logger"
	"github.com/richardliu001/wallet-ledger/internal/relay"
	"github.com/richardliu001/wallet-ledger/internal/repo"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := repo.OpenPostgres(cfg.Postgres)
	if err != nil {
		log.Fatal(err)
	}

	kw := repo.NewKafkaWriter(cfg.Kafka)
	defer kw.Close()

	repository := repo.NewRepository(gdb, nil, kw, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("wallet-poller started")
	if err := relay.New(repository, cfg.Kafka.PollInterval, cfg.Kafka.BatchSize, log).Run(ctx); err != nil {
		log.Errorf("relay: %v", err)
	}
}
