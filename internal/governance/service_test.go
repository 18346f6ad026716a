package governance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bolao/internal/domain"
)

var (
	govOwner = common.HexToAddress("0x2000000000000000000000000000000000000001")
	target   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	alice    = common.HexToAddress("0xb000000000000000000000000000000000000001")
	bob      = common.HexToAddress("0xb000000000000000000000000000000000000002")
	carol    = common.HexToAddress("0xb000000000000000000000000000000000000003")
)

type dispatched struct {
	target common.Address
	cmd    domain.MarketCommand
}

type fakeBus struct {
	sent []dispatched
	err  error
}

func (f *fakeBus) Dispatch(_ context.Context, target common.Address, cmd domain.MarketCommand) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, dispatched{target: target, cmd: cmd})
	return nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T, bus *fakeBus) (*Service, *testClock) {
	t.Helper()
	svc := New(Config{
		Owner:        govOwner,
		MarketTarget: target,
		QuorumBps:    2000,
		VotingPeriod: 24 * time.Hour,
	}, bus, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	clock := &testClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc.SetClock(clock.Now)
	return svc, clock
}

// createAndPass opens a set_fee_bps proposal, casts three yes and one no
// ballot, and advances the clock past the voting window.
func createAndPass(t *testing.T, svc *Service, clock *testClock) uint64 {
	t.Helper()
	ctx := context.Background()

	if _, err := svc.CreateProposal(ctx, alice, domain.ProposalKind{
		Type:   domain.KindSetFeeBps,
		FeeBps: 300,
	}, "lower the fee"); err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}

	for _, v := range []struct {
		voter  common.Address
		choice domain.VoteChoice
	}{
		{alice, domain.VoteYes},
		{bob, domain.VoteYes},
		{carol, domain.VoteYes},
		{govOwner, domain.VoteNo},
	} {
		if _, err := svc.Vote(ctx, v.voter, 1, v.choice); err != nil {
			t.Fatalf("Vote(%s): %v", v.voter.Hex(), err)
		}
	}

	clock.Advance(25 * time.Hour)
	return 1
}

func TestVoteOncePerVoter(t *testing.T) {
	svc, _ := newTestService(t, &fakeBus{})
	ctx := context.Background()

	if _, err := svc.CreateProposal(ctx, alice, domain.ProposalKind{Type: domain.KindSetQuorum, QuorumBps: 1000}, ""); err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if _, err := svc.Vote(ctx, bob, 1, domain.VoteYes); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if _, err := svc.Vote(ctx, bob, 1, domain.VoteNo); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("second vote: got %v, want ErrDuplicate", err)
	}
	if choice, err := svc.VoteOf(1, bob); err != nil || choice != domain.VoteYes {
		t.Errorf("VoteOf = %q, %v; want recorded yes", choice, err)
	}
}

func TestVoteAfterWindowCloses(t *testing.T) {
	svc, clock := newTestService(t, &fakeBus{})
	ctx := context.Background()

	if _, err := svc.CreateProposal(ctx, alice, domain.ProposalKind{Type: domain.KindSetQuorum}, ""); err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	clock.Advance(24 * time.Hour)
	if _, err := svc.Vote(ctx, bob, 1, domain.VoteYes); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
}

func TestExecuteWhileActive(t *testing.T) {
	svc, _ := newTestService(t, &fakeBus{})
	ctx := context.Background()

	if _, err := svc.CreateProposal(ctx, alice, domain.ProposalKind{Type: domain.KindSetFeeBps, FeeBps: 300}, ""); err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if _, err := svc.Execute(ctx, 1); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
}

func TestExecuteDispatchesCommand(t *testing.T) {
	bus := &fakeBus{}
	svc, clock := newTestService(t, bus)
	id := createAndPass(t, svc, clock)
	ctx := context.Background()

	events, err := svc.Execute(ctx, id)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want dispatch + executed", len(events))
	}
	if len(bus.sent) != 1 {
		t.Fatalf("got %d dispatches, want 1", len(bus.sent))
	}
	if bus.sent[0].target != target {
		t.Errorf("dispatched to %s, want the market target", bus.sent[0].target.Hex())
	}
	if cmd := bus.sent[0].cmd; cmd.Type != domain.CmdSetFeeBps || cmd.FeeBps != 300 {
		t.Errorf("dispatched %+v, want set_fee_bps 300", cmd)
	}

	p, _ := svc.Proposal(id)
	if !p.Executed || p.Status != domain.ProposalExecuted {
		t.Errorf("proposal after execute = %+v, want executed", p)
	}

	// A second execution is a no-op outcome: the fresh derivation reports
	// executed, so only a finalize event comes back and nothing dispatches.
	events, err = svc.Execute(ctx, id)
	if err != nil {
		t.Fatalf("re-execute: %v", err)
	}
	if len(events) != 1 || events[0].Kind != domain.EvProposalFinalized {
		t.Fatalf("re-execute returned %+v, want a single finalize event", events)
	}
	if status := events[0].Detail["status"]; status != domain.ProposalExecuted {
		t.Errorf("re-execute finalized with status %v, want executed", status)
	}
	if len(bus.sent) != 1 {
		t.Errorf("re-execute dispatched again: %d commands", len(bus.sent))
	}
}

func TestExecuteDefeatedIsNoOp(t *testing.T) {
	bus := &fakeBus{}
	svc, clock := newTestService(t, bus)
	ctx := context.Background()

	if _, err := svc.CreateProposal(ctx, alice, domain.ProposalKind{Type: domain.KindSetFeeBps, FeeBps: 300}, ""); err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if _, err := svc.Vote(ctx, alice, 1, domain.VoteNo); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := svc.Vote(ctx, bob, 1, domain.VoteNo); err != nil {
		t.Fatalf("vote: %v", err)
	}
	clock.Advance(25 * time.Hour)

	events, err := svc.Execute(ctx, 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(events) != 1 || events[0].Kind != domain.EvProposalFinalized {
		t.Fatalf("got %+v, want a single finalize event", events)
	}
	if len(bus.sent) != 0 {
		t.Errorf("defeated proposal dispatched %d commands", len(bus.sent))
	}
	p, _ := svc.Proposal(1)
	if p.Executed || p.Status != domain.ProposalDefeated {
		t.Errorf("proposal = %+v, want defeated and unexecuted", p)
	}
}

func TestExecuteDispatchFailure(t *testing.T) {
	bus := &fakeBus{err: errors.New("stream down")}
	svc, clock := newTestService(t, bus)
	id := createAndPass(t, svc, clock)
	ctx := context.Background()

	if _, err := svc.Execute(ctx, id); !errors.Is(err, domain.ErrExternalCall) {
		t.Fatalf("got %v, want ErrExternalCall", err)
	}
	p, _ := svc.Proposal(id)
	if p.Executed {
		t.Error("failed dispatch must not mark the proposal executed")
	}

	// Retry after the bus recovers.
	bus.err = nil
	if _, err := svc.Execute(ctx, id); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(bus.sent) != 1 {
		t.Errorf("got %d dispatches after retry, want exactly 1", len(bus.sent))
	}
}

func TestExecuteLocalKinds(t *testing.T) {
	bus := &fakeBus{}
	svc, clock := newTestService(t, bus)
	ctx := context.Background()

	if _, err := svc.CreateProposal(ctx, alice, domain.ProposalKind{
		Type:      domain.KindSetQuorum,
		QuorumBps: 4000,
	}, "raise quorum"); err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if _, err := svc.Vote(ctx, alice, 1, domain.VoteYes); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := svc.Vote(ctx, bob, 1, domain.VoteYes); err != nil {
		t.Fatalf("vote: %v", err)
	}
	clock.Advance(25 * time.Hour)

	if _, err := svc.Execute(ctx, 1); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(bus.sent) != 0 {
		t.Errorf("local kind dispatched %d commands", len(bus.sent))
	}
	if snap := svc.Snapshot(); snap.QuorumBps != 4000 {
		t.Errorf("quorum = %d after execute, want 4000", snap.QuorumBps)
	}
}

func TestEndTimeSnapshotImmune(t *testing.T) {
	bus := &fakeBus{}
	svc, clock := newTestService(t, bus)
	ctx := context.Background()

	// First proposal snapshots the 24h window.
	if _, err := svc.CreateProposal(ctx, alice, domain.ProposalKind{Type: domain.KindSetFeeBps, FeeBps: 100}, ""); err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	first, _ := svc.Proposal(1)

	// Pass a voting-period change.
	if _, err := svc.CreateProposal(ctx, alice, domain.ProposalKind{
		Type:         domain.KindSetVotingPeriod,
		VotingPeriod: time.Hour,
	}, ""); err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if _, err := svc.Vote(ctx, alice, 2, domain.VoteYes); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := svc.Vote(ctx, bob, 2, domain.VoteYes); err != nil {
		t.Fatalf("vote: %v", err)
	}
	clock.Advance(25 * time.Hour)
	if _, err := svc.Execute(ctx, 2); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Proposal 1's window did not move.
	after, _ := svc.Proposal(1)
	if !after.EndTime.Equal(first.EndTime) {
		t.Errorf("end time moved from %v to %v", first.EndTime, after.EndTime)
	}

	// New proposals use the shortened window.
	if _, err := svc.CreateProposal(ctx, alice, domain.ProposalKind{Type: domain.KindSetFeeBps, FeeBps: 200}, ""); err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	p3, _ := svc.Proposal(3)
	if want := clock.Now().Add(time.Hour); !p3.EndTime.Equal(want) {
		t.Errorf("new window end = %v, want %v", p3.EndTime, want)
	}
}

func TestFinalizeProposalCachesStatus(t *testing.T) {
	svc, clock := newTestService(t, &fakeBus{})
	id := createAndPass(t, svc, clock)

	ev, err := svc.FinalizeProposal(context.Background(), id)
	if err != nil {
		t.Fatalf("FinalizeProposal: %v", err)
	}
	if ev.Kind != domain.EvProposalFinalized {
		t.Errorf("event kind = %s, want proposal finalized", ev.Kind)
	}
	p, _ := svc.Proposal(id)
	if p.Status != domain.ProposalSucceeded {
		t.Errorf("cached status = %s, want succeeded", p.Status)
	}
	if p.Executed {
		t.Error("finalize must not execute")
	}
}

func TestSetOwnerAndMarketTarget(t *testing.T) {
	svc, _ := newTestService(t, &fakeBus{})
	ctx := context.Background()
	next := common.HexToAddress("0x3000000000000000000000000000000000000001")

	if _, err := svc.SetOwner(ctx, alice, next); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-owner set owner: got %v, want ErrUnauthorized", err)
	}
	if _, err := svc.SetOwner(ctx, govOwner, next); err != nil {
		t.Fatalf("SetOwner: %v", err)
	}
	// The old owner lost its authority.
	if _, err := svc.SetMarketTarget(ctx, govOwner, next); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stale owner: got %v, want ErrUnauthorized", err)
	}
	if _, err := svc.SetMarketTarget(ctx, next, next); err != nil {
		t.Fatalf("SetMarketTarget: %v", err)
	}
	if snap := svc.Snapshot(); snap.Owner != next || snap.MarketTarget != next {
		t.Errorf("snapshot = %+v, want updated owner and target", snap)
	}
}
