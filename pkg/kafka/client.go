// Package kafka wraps kafka-go for the mail outbox topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"doubtiq-go/internal/config"
	"doubtiq-go/pkg/log"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// ErrMalformed marks a message that can never be processed. The consumer
// commits it right away instead of retrying.
var ErrMalformed = errors.New("malformed message")

// DefaultMaxAttempts is how often a message is tried before it is given up.
const DefaultMaxAttempts = 3

// Handler processes messages read by a Consumer.
type Handler interface {
	Process(ctx context.Context, value []byte) error
	// Abandon is called once a message has failed MaxAttempts times.
	Abandon(ctx context.Context, value []byte, err error)
}

// Producer publishes to a single topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer for cfg.Topic.
func NewProducer(cfg config.KafkaConfig) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers(cfg)...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish writes one message.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.writer.Topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a topic with manual commits. Failed attempts are counted in
// redis so a restart does not reset them.
type Consumer struct {
	reader      messageReader
	rdb         *redis.Client
	handler     Handler
	MaxAttempts int
	Backoff     time.Duration
}

// NewConsumer creates a consumer group reader for cfg.Topic.
func NewConsumer(cfg config.KafkaConfig, rdb *redis.Client, handler Handler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumer(r, rdb, handler)
}

func newConsumer(r messageReader, rdb *redis.Client, handler Handler) *Consumer {
	return &Consumer{
		reader:      r,
		rdb:         rdb,
		handler:     handler,
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     time.Second,
	}
}

// Run consumes until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) {
	log.Info("Kafka consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Error("failed to close kafka reader", err)
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("failed to fetch kafka message", err)
			}
			return
		}
		if !c.handle(ctx, m) {
			return
		}
		if err := c.reader.CommitMessages(context.Background(), m); err != nil {
			log.Errorf("failed to commit kafka offset %d: %v", m.Offset, err)
		}
	}
}

// handle runs the handler until it succeeds or gives up. It returns false
// only when ctx was cancelled mid-retry, leaving the message uncommitted.
func (c *Consumer) handle(ctx context.Context, m kafka.Message) bool {
	key := attemptsKey(m)
	var local int64
	for {
		err := c.handler.Process(ctx, m.Value)
		if err == nil {
			_ = c.rdb.Del(context.Background(), key).Err()
			return true
		}
		if errors.Is(err, ErrMalformed) {
			log.Errorf("dropping malformed kafka message at offset %d: %v", m.Offset, err)
			return true
		}

		local++
		attempts, incErr := c.rdb.Incr(context.Background(), key).Result()
		if incErr == nil {
			_ = c.rdb.Expire(context.Background(), key, 24*time.Hour).Err()
		} else {
			// redis unavailable: fall back to this delivery's own count
			log.Error("failed to count kafka attempt", incErr)
			attempts = local
		}
		log.Warnf("kafka message at offset %d failed (attempt %d/%d): %v", m.Offset, attempts, c.MaxAttempts, err)

		if attempts >= int64(c.MaxAttempts) {
			c.handler.Abandon(ctx, m.Value, err)
			_ = c.rdb.Del(context.Background(), key).Err()
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.Backoff):
		}
	}
}

func attemptsKey(m kafka.Message) string {
	return fmt.Sprintf("kafka:attempts:%s:%d:%d", m.Topic, m.Partition, m.Offset)
}

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
