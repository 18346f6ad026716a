package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AgeVerifier is the age-verification (KYC) collaborator. IsOver18 blocks
// until the collaborator replies; any transport or decode failure must be
// reported as an error, never as a silent false.
type AgeVerifier interface {
	IsOver18(ctx context.Context, account common.Address) (bool, error)
}

// Treasury executes fund transfers on behalf of the services. It is assumed
// to accept transfers; an error aborts the calling operation.
type Treasury interface {
	Transfer(ctx context.Context, to common.Address, amount uint64) error
}

// CommandBus carries MarketCommands from governance to the betting pool
// process. Dispatch is fire-and-forget: once accepted by the bus the sender
// learns nothing about downstream consumption.
type CommandBus interface {
	Dispatch(ctx context.Context, target common.Address, cmd MarketCommand) error
}

// StreamMessage is one raw message read from a command stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// CommandSource is the consuming side of the command stream.
type CommandSource interface {
	Read(ctx context.Context, target common.Address, lastID string, count int, block time.Duration) ([]StreamMessage, error)
}

// EventJournal persists the append-only event log.
type EventJournal interface {
	Append(ctx context.Context, ev Event) error
	List(ctx context.Context, opts ListOpts) ([]Event, error)
}

// EventPublisher broadcasts events to live observers (pub/sub, websocket).
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// LockManager provides distributed locks, used to elect a single command
// consumer across pool replicas.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter limits request rates per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
