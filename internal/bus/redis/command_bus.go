package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"bolao/internal/domain"
)

// streamMaxLen is the approximate maximum length for command streams,
// enforced via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// CommandBus implements domain.CommandBus and domain.CommandSource using
// Redis Streams. Each pool process identity gets its own stream, so a
// governance engine can address any of several pool deployments.
type CommandBus struct {
	rdb *redis.Client
}

// NewCommandBus creates a CommandBus backed by the given Client.
func NewCommandBus(c *Client) *CommandBus {
	return &CommandBus{rdb: c.Underlying()}
}

func commandStream(target common.Address) string {
	return "bolao:commands:" + target.Hex()
}

// Dispatch appends a command to the target's stream. Delivery to the bus is
// the whole contract; the dispatcher never learns whether the command was
// consumed or applied.
func (cb *CommandBus) Dispatch(ctx context.Context, target common.Address, cmd domain.MarketCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("redis: marshal command: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: commandStream(target),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := cb.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: dispatch to %s: %w", target.Hex(), err)
	}
	return nil
}

// Read reads up to count commands addressed to target, starting after
// lastID. Use "0-0" as lastID to read from the beginning. Block bounds how
// long XREAD waits for new entries; it returns an empty slice (not an error)
// when the wait elapses with nothing to deliver.
func (cb *CommandBus) Read(ctx context.Context, target common.Address, lastID string, count int, block time.Duration) ([]domain.StreamMessage, error) {
	stream := commandStream(target)
	args := &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   int64(count),
		Block:   block,
	}

	results, err := cb.rdb.XRead(ctx, args).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var messages []domain.StreamMessage
	for _, s := range results {
		for _, msg := range s.Messages {
			payload, ok := msg.Values["payload"]
			if !ok {
				continue
			}

			var data []byte
			switch v := payload.(type) {
			case string:
				data = []byte(v)
			case []byte:
				data = v
			default:
				continue
			}

			messages = append(messages, domain.StreamMessage{
				ID:      msg.ID,
				Payload: data,
			})
		}
	}

	return messages, nil
}

// Compile-time interface checks.
var (
	_ domain.CommandBus    = (*CommandBus)(nil)
	_ domain.CommandSource = (*CommandBus)(nil)
)
