package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-escrow-market.git/internal/config"
	"github.com/ariefcatur/go-escrow-market.git/internal/escrow"
	kafkax "github.com/ariefcatur/go-escrow-market.git/internal/kafka"
	"github.com/ariefcatur/go-escrow-market.git/internal/orders"
	"github.com/ariefcatur/go-escrow-market.git/internal/postgres"
	"github.com/ariefcatur/go-escrow-market.git/internal/redisx"
)

// Sweeps DELIVERED orders whose confirmation window has elapsed and
// releases them through the same path a buyer confirmation takes.
func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	store := postgres.NewStore(db)
	svc := &orders.Service{
		Store:            store,
		Events:           prod,
		Log:              log,
		Name:             cfg.ServiceName + "-autorelease",
		FeeRateBps:       cfg.FeeRateBps,
		ShippingFeeCents: cfg.ShippingFeeCents,
		AutoReleaseAfter: cfg.AutoReleaseAfter,
		AutoUnlist:       cfg.AutoUnlist,
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		cancel()
	}()

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	log.Info("auto-release sweeper started",
		zap.Duration("interval", cfg.SweepInterval),
		zap.Duration("cooldown", cfg.AutoReleaseAfter))

	for {
		select {
		case <-ctx.Done():
			prod.Close()
			prod.WaitClosed()
			return
		case <-ticker.C:
			sweep(ctx, svc, store, rdb, cfg, log)
		}
	}
}

func sweep(ctx context.Context, svc *orders.Service, store orders.Store, rdb *redis.Client, cfg config.Config, log *zap.Logger) {
	cutoff := time.Now().Add(-cfg.AutoReleaseAfter)
	ids, err := store.ListAutoReleasable(ctx, cutoff, cfg.SweepLimit)
	if err != nil {
		log.Error("list auto-releasable", zap.Error(err))
		return
	}
	for _, id := range ids {
		key := fmt.Sprintf(redisx.KeyAutoReleaseDedup, id)
		ok, err := rdb.SetNX(ctx, key, "1", redisx.TTLDedup).Result()
		if err != nil {
			log.Warn("dedup check failed, proceeding", zap.Int64("order_id", id), zap.Error(err))
		} else if !ok {
			continue
		}
		if err := svc.AutoRelease(ctx, id); err != nil {
			switch {
			case errors.Is(err, escrow.ErrAlreadyProcessed):
				// lost the race to a buyer confirm, fine
			case errors.Is(err, orders.ErrCooldownActive), errors.Is(err, orders.ErrInvalidTransition):
				log.Debug("skipped", zap.Int64("order_id", id), zap.Error(err))
			default:
				log.Error("auto-release failed", zap.Int64("order_id", id), zap.Error(err))
			}
			continue
		}
		log.Info("auto-released", zap.Int64("order_id", id))
	}
}
