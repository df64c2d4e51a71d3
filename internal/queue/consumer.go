package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/divyandj/IMAGE-Hackathon/internal/config"
)

const (
	readBatch       = 10
	readBlock       = 5 * time.Second
	readRetryDelay  = 2 * time.Second
	defaultMaxTries = 5
)

type MessageHandler interface {
	Handle(ctx context.Context, msg redis.XMessage) error
}

// Consumer reads a stream as one member of a consumer group. Messages are acked only once
// the handler succeeds; failed ones are reclaimed after ClaimInterval and dropped after
// MaxDeliveries attempts.
type Consumer struct {
	client  redis.Cmdable
	cfg     config.WorkerConfig
	block   time.Duration
	log     zerolog.Logger
	handler MessageHandler
}

func NewConsumer(client redis.Cmdable, cfg config.WorkerConfig, log zerolog.Logger, handler MessageHandler) *Consumer {
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = defaultMaxTries
	}
	return &Consumer{
		client:  client,
		cfg:     cfg,
		block:   readBlock,
		log:     log.With().Str("component", "consumer").Str("stream", cfg.Stream).Logger(),
		handler: handler,
	}
}

// EnsureGroup creates the consumer group, and the stream with it, when missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s: %w", c.cfg.Group, err)
	}
	return nil
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	nextClaim := time.Now().Add(c.cfg.ClaimInterval)
	for ctx.Err() == nil {
		if err := c.readNew(ctx); err != nil && ctx.Err() == nil {
			c.log.Error().Err(err).Msg("stream read error")
			if !sleep(ctx, readRetryDelay) {
				break
			}
		}

		if time.Now().After(nextClaim) {
			if err := c.reclaim(ctx); err != nil && ctx.Err() == nil {
				c.log.Error().Err(err).Msg("reclaim pending messages failed")
			}
			nextClaim = time.Now().Add(c.cfg.ClaimInterval)
		}
	}
	return ctx.Err()
}

func (c *Consumer) readNew(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    readBatch,
		Block:    c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			c.handle(ctx, msg)
		}
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) {
	if err := c.handler.Handle(ctx, msg); err != nil {
		c.log.Error().Err(err).Str("message_id", msg.ID).Msg("handle message failed")
		return
	}
	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		c.log.Error().Err(err).Str("message_id", id).Msg("ack failed")
	}
}

// reclaim takes over messages that have sat unacked for ClaimInterval, whichever consumer
// they were delivered to, and retries them.
func (c *Consumer) reclaim(ctx context.Context) error {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Idle:   c.cfg.ClaimInterval,
		Start:  "-",
		End:    "+",
		Count:  readBatch,
	}).Result()
	if err != nil {
		return err
	}

	for _, entry := range pending {
		if entry.RetryCount >= c.cfg.MaxDeliveries {
			c.log.Warn().
				Str("message_id", entry.ID).
				Int64("deliveries", entry.RetryCount).
				Msg("dropping message after repeated failures")
			c.ack(ctx, entry.ID)
			continue
		}

		msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			MinIdle:  c.cfg.ClaimInterval,
			Messages: []string{entry.ID},
		}).Result()
		if err != nil {
			c.log.Error().Err(err).Str("message_id", entry.ID).Msg("claim failed")
			continue
		}
		for _, msg := range msgs {
			c.handle(ctx, msg)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
