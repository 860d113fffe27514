// Command consumer reads service-request lifecycle events from Kafka and
// keeps a short per-account notification inbox in Redis, newest first.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/roadside-matching/internal/config"
	"github.com/example/roadside-matching/internal/events"
	"github.com/example/roadside-matching/internal/logging"
	"github.com/example/roadside-matching/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total lifecycle event messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	inboxWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_inbox_writes_total",
		Help: "Total successful inbox writes",
	})
	inboxErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_inbox_errors_total",
		Help: "Total inbox write failures after retries",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, inboxWrites, inboxErrors)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to serve prometheus metrics on")
	flag.Parse()

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	inbox := &redisInbox{c: rc}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			_, _ = w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 1, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		msgsConsumed.Inc()

		ev, err := events.Decode(m.Value)
		if err != nil {
			msgsInvalid.Inc()
			logger.Warn("invalid message", "offset", m.Offset, "error", err)
			continue
		}

		if err := deliverWithRetry(ctx, inbox, ev, cfg.InboxSize, 3, 200*time.Millisecond); err != nil {
			inboxErrors.Inc()
			logger.Error("inbox write failed", "request_id", ev.RequestID, "event", ev.Type, "error", err)
			continue
		}
		inboxWrites.Inc()
	}
}

// InboxWriter is the small subset of redis list operations the consumer needs.
type InboxWriter interface {
	LPush(ctx context.Context, key string, value []byte) error
	LTrim(ctx context.Context, key string, size int) error
}

type redisInbox struct{ c *redis.Client }

func (r *redisInbox) LPush(ctx context.Context, key string, value []byte) error {
	return r.c.LPush(ctx, key, value).Err()
}

func (r *redisInbox) LTrim(ctx context.Context, key string, size int) error {
	return r.c.LTrim(ctx, key, 0, int64(size-1)).Err()
}

func inboxKey(accountID string) string { return "roadside:inbox:" + accountID }

// recipients are the accounts that should see ev: the client, and the
// provider account when the producer knew it.
func recipients(ev models.Event) []string {
	out := []string{}
	if ev.ClientID != "" {
		out = append(out, ev.ClientID)
	}
	if ev.ProviderOwnerID != "" && ev.ProviderOwnerID != ev.ClientID {
		out = append(out, ev.ProviderOwnerID)
	}
	return out
}

// deliverWithRetry pushes ev onto every recipient's inbox, retrying each
// write with doubling delay.
func deliverWithRetry(ctx context.Context, w InboxWriter, ev models.Event, size, attempts int, delay time.Duration) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	for _, id := range recipients(ev) {
		key := inboxKey(id)
		if err := retry(ctx, attempts, delay, func() error {
			if err := w.LPush(ctx, key, payload); err != nil {
				return err
			}
			return w.LTrim(ctx, key, size)
		}); err != nil {
			return fmt.Errorf("inbox %s: %w", id, err)
		}
	}
	return nil
}

func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
