// Package redisstream publishes emission events to a Redis stream.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/heartmarshall/laudo-backend/internal/config"
	"github.com/heartmarshall/laudo-backend/internal/domain"
)

const (
	eventEmitted = "laudo.emitted"
	maxStreamLen = 100_000
)

type streamAdder interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
}

// Notifier appends one stream entry per emitted report.
type Notifier struct {
	rdb      streamAdder
	closer   func() error
	pinger   func(ctx context.Context) error
	stream   string
	attempts uint64
	backoff  time.Duration
	log      *slog.Logger
}

// NewNotifier connects to Redis and checks the connection.
func NewNotifier(ctx context.Context, cfg config.NotifyConfig, logger *slog.Logger) (*Notifier, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisstream: ping: %w", err)
	}

	n := newNotifier(rdb, cfg, logger)
	n.closer = rdb.Close
	n.pinger = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	return n, nil
}

func newNotifier(rdb streamAdder, cfg config.NotifyConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		rdb:      rdb,
		closer:   func() error { return nil },
		pinger:   func(context.Context) error { return nil },
		stream:   cfg.Stream,
		attempts: cfg.Attempts,
		backoff:  250 * time.Millisecond,
		log:      logger.With("adapter", "redisstream"),
	}
}

// NotifyEmitted publishes the event, retrying with exponential backoff.
func (n *Notifier) NotifyEmitted(ctx context.Context, event domain.EmittedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redisstream: encode event: %w", err)
	}

	args := &goredis.XAddArgs{
		Stream: n.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]any{
			"type":      eventEmitted,
			"batch_id":  strconv.FormatInt(event.BatchID, 10),
			"report_id": strconv.FormatInt(event.ReportID, 10),
			"payload":   string(payload),
		},
	}

	var id string
	backoff := retry.WithMaxRetries(n.attempts-1, retry.NewExponential(n.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := n.rdb.XAdd(ctx, args).Result()
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		id = res
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstream: publish batch %d: %w", event.BatchID, err)
	}

	n.log.DebugContext(ctx, "event published",
		slog.String("stream", n.stream),
		slog.String("entry_id", id),
		slog.Int64("batch_id", event.BatchID),
	)
	return nil
}

// Ping reports whether the stream backend is reachable.
func (n *Notifier) Ping(ctx context.Context) error { return n.pinger(ctx) }

func (n *Notifier) Close() error { return n.closer() }
