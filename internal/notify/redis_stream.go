package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxLen = 10000
	fieldAddress  = "address"
	fieldSentAt   = "sent_at"
)

// RedisStreamGateway hands reminders to an external mailer through a Redis
// stream. The stream is capped at roughly MaxLen entries.
type RedisStreamGateway struct {
	client redis.Cmdable
	stream string
	maxLen int64
	now    func() time.Time
}

// NewRedisStreamGateway publishes onto stream using client.
func NewRedisStreamGateway(client redis.Cmdable, stream string, maxLen int64) (*RedisStreamGateway, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	stream = strings.TrimSpace(stream)
	if stream == "" {
		return nil, errors.New("notify stream required")
	}
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &RedisStreamGateway{client: client, stream: stream, maxLen: maxLen, now: time.Now}, nil
}

func (g *RedisStreamGateway) SendReminder(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrNoAddress
	}
	err := g.client.XAdd(ctx, &redis.XAddArgs{
		Stream: g.stream,
		MaxLen: g.maxLen,
		Approx: true,
		Values: map[string]any{
			fieldAddress: address,
			fieldSentAt:  g.now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish reminder to %s: %w", g.stream, err)
	}
	return nil
}

// StreamWorker consumes reminders from the stream as part of a consumer group
// and delivers them through a Gateway. Entries are acknowledged once the
// gateway returns, successful or not.
type StreamWorker struct {
	client   redis.Cmdable
	stream   string
	group    string
	consumer string
	block    time.Duration
	count    int64
	deliver  Gateway
}

// StreamWorkerConfig configures a StreamWorker.
type StreamWorkerConfig struct {
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
	Count    int64
}

func NewStreamWorker(client redis.Cmdable, cfg StreamWorkerConfig, deliver Gateway) (*StreamWorker, error) {
	if client == nil || deliver == nil {
		return nil, errors.New("redis client and gateway required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("notify stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "mailer"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = "mailer-1"
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	count := cfg.Count
	if count <= 0 {
		count = 10
	}
	return &StreamWorker{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    block,
		count:    count,
		deliver:  deliver,
	}, nil
}

// Run blocks until ctx is cancelled.
func (w *StreamWorker) Run(ctx context.Context) error {
	if err := w.ensureGroup(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := w.poll(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("reminder stream read failed", "stream", w.stream, "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

func (w *StreamWorker) ensureGroup(ctx context.Context) error {
	err := w.client.XGroupCreateMkStream(ctx, w.stream, w.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", w.group, err)
	}
	return nil
}

// poll reads one batch and returns how many entries it handled.
func (w *StreamWorker) poll(ctx context.Context) (int, error) {
	streams, err := w.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    w.group,
		Consumer: w.consumer,
		Streams:  []string{w.stream, ">"},
		Count:    w.count,
		Block:    w.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	handled := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			w.handle(ctx, msg)
			handled++
		}
	}
	return handled, nil
}

func (w *StreamWorker) handle(ctx context.Context, msg redis.XMessage) {
	address, _ := msg.Values[fieldAddress].(string)
	if err := w.deliver.SendReminder(ctx, address); err != nil {
		slog.Error("reminder delivery failed", "stream", w.stream, "id", msg.ID, "err", err)
	}
	if err := w.client.XAck(ctx, w.stream, w.group, msg.ID).Err(); err != nil {
		slog.Warn("reminder ack failed", "stream", w.stream, "id", msg.ID, "err", err)
	}
}
