package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-escrow-market.git/internal/config"
	"github.com/ariefcatur/go-escrow-market.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-escrow-market.git/internal/kafka"
	"github.com/ariefcatur/go-escrow-market.git/internal/orders"
	"github.com/ariefcatur/go-escrow-market.git/internal/postgres"
	"github.com/ariefcatur/go-escrow-market.git/internal/redisx"
)

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

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	svc := &orders.Service{
		Store:            postgres.NewStore(db),
		Events:           prod,
		Log:              log,
		Name:             cfg.ServiceName,
		FeeRateBps:       cfg.FeeRateBps,
		ShippingFeeCents: cfg.ShippingFeeCents,
		AutoReleaseAfter: cfg.AutoReleaseAfter,
		AutoUnlist:       cfg.AutoUnlist,
	}

	router := httpx.NewRouter()
	(&httpx.ProductsHandler{Svc: svc, Log: log}).Register(router)
	(&httpx.OrdersHandler{Svc: svc, Redis: rdb, Log: log}).Register(router)
	(&httpx.AdminHandler{Svc: svc, Log: log, Token: cfg.AdminToken}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // close inbox -> flush & close writer
	prod.WaitClosed()
}
