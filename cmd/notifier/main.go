package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-escrow-market.git/internal/config"
	kafkax "github.com/ariefcatur/go-escrow-market.git/internal/kafka"
	"github.com/ariefcatur/go-escrow-market.git/internal/orders"
)

// Tails the order lifecycle topics and logs every event. A real deployment
// would fan these out to mail or push, the log keeps an auditable trail.
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

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		cancel()
	}()

	topics := []string{
		orders.TopicOrderCreated,
		orders.TopicOrderFulfillment,
		orders.TopicOrderCompleted,
		orders.TopicOrderCancelled,
		orders.TopicOrderDisputed,
		orders.TopicEscrowSettled,
	}

	var wg sync.WaitGroup
	for _, topic := range topics {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			c := kafkax.NewConsumer(cfg.KafkaBrokers, "market-notifier", topic, 2, log)
			if err := c.Start(ctx, handle(log, topic)); err != nil {
				log.Error("consumer stopped", zap.String("topic", topic), zap.Error(err))
			}
		}(topic)
	}
	wg.Wait()
}

func handle(log *zap.Logger, topic string) kafkax.Handler {
	return func(ctx context.Context, m kafka.Message) error {
		var env orders.Envelope
		if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
			log.Warn("bad event, skipping",
				zap.String("topic", topic), zap.String("key", string(m.Key)), zap.Error(err))
			return nil
		}
		log.Info("notify",
			zap.String("topic", topic),
			zap.String("event", env.EventType),
			zap.String("event_id", env.EventID),
			zap.String("key", string(m.Key)),
			zap.Time("occurred_at", env.OccurredAt))
		return nil
	}
}
