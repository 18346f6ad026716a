package pool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bolao/internal/domain"
)

const (
	consumerLockKey = "pool:command-consumer"
	consumerLockTTL = 30 * time.Second
	readBlock       = 5 * time.Second
	readBatch       = 32
)

// Consumer drains the governance command stream addressed to this pool
// process and applies each command. A distributed lock elects a single
// consumer across replicas; commands that fail to decode or apply are
// logged and skipped, matching the bus's fire-and-forget contract.
type Consumer struct {
	service *Service
	source  domain.CommandSource
	locks   domain.LockManager
	target  common.Address
	logger  *slog.Logger

	lastID string
}

// NewConsumer creates a Consumer for the command stream keyed by target.
func NewConsumer(service *Service, source domain.CommandSource, locks domain.LockManager, target common.Address, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		source:  source,
		locks:   locks,
		target:  target,
		logger:  logger.With(slog.String("component", "command_consumer")),
		lastID:  "0-0",
	}
}

// Run consumes commands until the context is cancelled. The leader lock is
// re-acquired per batch so a crashed consumer is replaced within one TTL.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "command consumer starting",
		slog.String("target", c.target.Hex()),
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		unlock, err := c.locks.Acquire(ctx, consumerLockKey, consumerLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				if !sleepCtx(ctx, consumerLockTTL) {
					return ctx.Err()
				}
				continue
			}
			c.logger.WarnContext(ctx, "lock acquire failed", slog.String("error", err.Error()))
			if !sleepCtx(ctx, readBlock) {
				return ctx.Err()
			}
			continue
		}

		c.drainBatch(ctx)
		unlock()
	}
}

// drainBatch reads and applies one batch of commands.
func (c *Consumer) drainBatch(ctx context.Context) {
	msgs, err := c.source.Read(ctx, c.target, c.lastID, readBatch, readBlock)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.WarnContext(ctx, "command stream read failed", slog.String("error", err.Error()))
		}
		return
	}

	for _, msg := range msgs {
		c.lastID = msg.ID

		var cmd domain.MarketCommand
		if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
			c.logger.WarnContext(ctx, "skipping undecodable command",
				slog.String("stream_id", msg.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := c.service.ApplyCommand(ctx, cmd); err != nil {
			c.logger.WarnContext(ctx, "command application failed",
				slog.String("stream_id", msg.ID),
				slog.String("type", string(cmd.Type)),
				slog.String("error", err.Error()),
			)
			continue
		}

		c.logger.InfoContext(ctx, "command applied",
			slog.String("stream_id", msg.ID),
			slog.String("type", string(cmd.Type)),
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
