package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/richardliu001/wallet-ledger/internal/auth"
	"github.com/richardliu001/wallet-ledger/internal/config"
	"github.com/richardliu001/wallet-ledger/internal/logger"
	"github.com/richardliu001/wallet-ledger/internal/paystack"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"github.com/richardliu001/wallet-ledger/internal/service"
	httptransport "github.com/richardliu001/wallet-ledger/internal/transport/http"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. postgres
	gdb, err := repo.OpenPostgres(cfg.Postgres)
	if err != nil {
		log.Fatal(err)
	}
	if err := repo.Migrate(gdb); err != nil {
		log.Fatal(err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("sql db: %v", err)
	}

	// 4. redis; the status cache degrades to direct processor calls without it
	rdb := repo.NewRedis(cfg.Redis)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnw("redis unavailable, deposit status cache disabled", "err", err)
	}

	// 5. kafka writer
	kw := repo.NewKafkaWriter(cfg.Kafka)
	defer kw.Close()

	// 6. repo & services
	repository := repo.NewRepository(gdb, rdb, kw, log, repo.WithTxTimeout(cfg.Postgres.TxTimeout))
	var gate auth.Gate = auth.NewService(gdb, cfg.Auth, log)
	processor := paystack.NewClient(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey, cfg.Paystack.Timeout)
	wallets := service.NewWalletService(repository, gate, cfg.Ledger.MinTransferAmount, log)
	deposits := service.NewDepositService(repository, gate, processor, service.DepositConfig{
		SigningSecret:  processor.SecretKey(),
		CallbackURL:    cfg.Paystack.CallbackURL,
		MinAmount:      cfg.Ledger.MinDepositAmount,
		StatusCacheTTL: cfg.Paystack.StatusCacheTTL,
	}, log)

	// 7. gin router
	router := httptransport.NewRouter(httptransport.NewHandler(wallets, deposits, log), gate,
		cfg.RateLimit, sqlDB.PingContext, log)

	// 8. serve until signalled, then drain
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: router}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("wallet-server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Errorf("server: %v", err)
	}
	_ = rdb.Close()
	_ = sqlDB.Close()
}
