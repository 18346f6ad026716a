package pool

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bolao/internal/domain"
)

type fakeSource struct {
	batches [][]domain.StreamMessage
	reads   []string // lastID per read
	done    chan struct{}
}

func (f *fakeSource) Read(ctx context.Context, _ common.Address, lastID string, _ int, _ time.Duration) ([]domain.StreamMessage, error) {
	f.reads = append(f.reads, lastID)
	if len(f.batches) == 0 {
		close(f.done)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

type fakeLocks struct{}

func (fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

func commandMessage(t *testing.T, id string, cmd domain.MarketCommand) domain.StreamMessage {
	t.Helper()
	payload, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	return domain.StreamMessage{ID: id, Payload: payload}
}

func TestConsumerAppliesCommands(t *testing.T) {
	svc, t0 := newTestService(t, &fakeTreasury{failAt: -1})

	source := &fakeSource{
		done: make(chan struct{}),
		batches: [][]domain.StreamMessage{
			{
				commandMessage(t, "1-0", domain.MarketCommand{
					Type:      domain.CmdRegisterPhase,
					Name:      "group-a",
					StartTime: t0,
					EndTime:   t0.Add(24 * time.Hour),
				}),
				{ID: "2-0", Payload: []byte("not json")},
				commandMessage(t, "3-0", domain.MarketCommand{
					Type:   domain.CmdSetFeeBps,
					FeeBps: 250,
				}),
			},
		},
	}

	target := common.HexToAddress("0x4000000000000000000000000000000000000001")
	consumer := NewConsumer(svc, source, fakeLocks{}, target, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- consumer.Run(ctx) }()

	<-source.done
	cancel()
	<-errCh

	snap := svc.Snapshot()
	if len(snap.Phases) != 1 || snap.Phases[0].Name != "group-a" {
		t.Errorf("phases = %+v, want the streamed phase", snap.Phases)
	}
	if snap.FeeBps != 250 {
		t.Errorf("fee bps = %d, want 250", snap.FeeBps)
	}

	// The undecodable message was skipped but still advanced the cursor.
	if len(source.reads) < 2 || source.reads[1] != "3-0" {
		t.Errorf("reads = %v, want second read from 3-0", source.reads)
	}
}
