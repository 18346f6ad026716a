package pool

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
	owner       = common.HexToAddress("0x1000000000000000000000000000000000000001")
	distributor = common.HexToAddress("0x1000000000000000000000000000000000000002")
	alice       = common.HexToAddress("0xa000000000000000000000000000000000000001")
	bob         = common.HexToAddress("0xa000000000000000000000000000000000000002")
	carol       = common.HexToAddress("0xa000000000000000000000000000000000000003")
)

type fakeVerifier struct {
	deny map[common.Address]bool
	err  error
}

func (f *fakeVerifier) IsOver18(_ context.Context, account common.Address) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.deny[account], nil
}

type transferCall struct {
	to     common.Address
	amount uint64
}

type fakeTreasury struct {
	calls  []transferCall
	failAt int // fail the nth call (0-based); -1 never fails
}

func (f *fakeTreasury) Transfer(_ context.Context, to common.Address, amount uint64) error {
	if f.failAt >= 0 && len(f.calls) == f.failAt {
		return errors.New("treasury unavailable")
	}
	f.calls = append(f.calls, transferCall{to: to, amount: amount})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestService builds a pool with the standard parameters (5% fee, 20%
// final prize) and a clock frozen at t0.
func newTestService(t *testing.T, treas *fakeTreasury) (*Service, time.Time) {
	t.Helper()
	svc := New(Config{
		Owner:            owner,
		PrizeDistributor: distributor,
		Params: Params{
			FeeBps:         500,
			FinalPrizeBps:  2000,
			MaxPayoutChunk: 10_000 * 1_000_000_000_000,
		},
	}, &fakeVerifier{}, treas, nil, testLogger())

	t0 := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return t0 })
	return svc, t0
}

// setupMatch registers a phase and one match kicking off an hour after t0.
func setupMatch(t *testing.T, svc *Service, t0 time.Time) uint64 {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.RegisterPhase(ctx, owner, "group-a", t0, t0.Add(30*24*time.Hour)); err != nil {
		t.Fatalf("RegisterPhase: %v", err)
	}
	if _, err := svc.RegisterMatch(ctx, owner, "group-a", "BRA", "ARG", t0.Add(time.Hour)); err != nil {
		t.Fatalf("RegisterMatch: %v", err)
	}
	return 1
}

func TestRegisterPhase(t *testing.T) {
	svc, t0 := newTestService(t, &fakeTreasury{failAt: -1})
	ctx := context.Background()

	if _, err := svc.RegisterPhase(ctx, alice, "group-a", t0, t0.Add(time.Hour)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-owner register: got %v, want ErrUnauthorized", err)
	}
	if _, err := svc.RegisterPhase(ctx, owner, "group-a", t0, t0.Add(time.Hour)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.RegisterPhase(ctx, owner, "group-a", t0, t0.Add(time.Hour)); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("duplicate register: got %v, want ErrDuplicate", err)
	}
}

func TestRegisterMatchUnknownPhase(t *testing.T) {
	svc, t0 := newTestService(t, &fakeTreasury{failAt: -1})

	_, err := svc.RegisterMatch(context.Background(), owner, "nope", "BRA", "ARG", t0.Add(time.Hour))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestPlaceBetFeeSplit(t *testing.T) {
	svc, t0 := newTestService(t, &fakeTreasury{failAt: -1})
	matchID := setupMatch(t, svc, t0)
	ctx := context.Background()

	if _, err := svc.PlaceBet(ctx, alice, matchID, domain.OutcomeHome, 1_000_000); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	snap := svc.Snapshot()
	if snap.FeeAccum != 50_000 {
		t.Errorf("fee accumulator = %d, want 50000", snap.FeeAccum)
	}
	if snap.FinalPrizeAccum != 200_000 {
		t.Errorf("final prize accumulator = %d, want 200000", snap.FinalPrizeAccum)
	}

	info, err := svc.Match(matchID)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if info.PoolHome != 750_000 {
		t.Errorf("home pool = %d, want 750000", info.PoolHome)
	}
	if total := info.PoolHome + snap.FeeAccum + snap.FinalPrizeAccum; total != 1_000_000 {
		t.Errorf("net + fee + prize = %d, want the gross 1000000", total)
	}

	bet, err := svc.Bet(alice, matchID)
	if err != nil {
		t.Fatalf("Bet: %v", err)
	}
	if bet.Amount != 750_000 || bet.Selected != domain.OutcomeHome {
		t.Errorf("recorded bet = %+v, want net 750000 on home", bet)
	}
}

func TestPlaceBetDuplicate(t *testing.T) {
	svc, t0 := newTestService(t, &fakeTreasury{failAt: -1})
	matchID := setupMatch(t, svc, t0)
	ctx := context.Background()

	if _, err := svc.PlaceBet(ctx, alice, matchID, domain.OutcomeHome, 100_000); err != nil {
		t.Fatalf("first bet: %v", err)
	}
	if _, err := svc.PlaceBet(ctx, alice, matchID, domain.OutcomeAway, 100_000); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("second bet: got %v, want ErrDuplicate", err)
	}
}

func TestPlaceBetAfterKickoff(t *testing.T) {
	svc, t0 := newTestService(t, &fakeTreasury{failAt: -1})
	matchID := setupMatch(t, svc, t0)

	svc.SetClock(func() time.Time { return t0.Add(time.Hour) })
	_, err := svc.PlaceBet(context.Background(), alice, matchID, domain.OutcomeHome, 100_000)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
}

func TestPlaceBetRequiresAdult(t *testing.T) {
	svc, t0 := newTestService(t, &fakeTreasury{failAt: -1})
	matchID := setupMatch(t, svc, t0)
	svc.verifier = &fakeVerifier{deny: map[common.Address]bool{alice: true}}

	_, err := svc.PlaceBet(context.Background(), alice, matchID, domain.OutcomeHome, 100_000)
	if !errors.Is(err, domain.ErrExternalCall) {
		t.Fatalf("underage bet: got %v, want ErrExternalCall", err)
	}
	info, _ := svc.Match(matchID)
	if info.HasBets {
		t.Error("rejected bet must leave no partial state")
	}
}

func TestResultLifecycle(t *testing.T) {
	svc, t0 := newTestService(t, &fakeTreasury{failAt: -1})
	matchID := setupMatch(t, svc, t0)
	ctx := context.Background()

	if _, err := svc.PlaceBet(ctx, alice, matchID, domain.OutcomeHome, 100_000); err != nil {
		t.Fatalf("bet: %v", err)
	}
	if _, err := svc.PlaceBet(ctx, bob, matchID, domain.OutcomeAway, 100_000); err != nil {
		t.Fatalf("bet: %v", err)
	}

	// Finalize before propose is out of order.
	if _, err := svc.FinalizeResult(ctx, owner, matchID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("finalize unresolved: got %v, want ErrInvalidState", err)
	}

	// Any caller may propose.
	if _, err := svc.ProposeResult(ctx, carol, matchID, domain.OutcomeHome); err != nil {
		t.Fatalf("propose: %v", err)
	}
	// Only once.
	if _, err := svc.ProposeResult(ctx, carol, matchID, domain.OutcomeAway); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second propose: got %v, want ErrInvalidState", err)
	}

	// Only the owner finalizes.
	if _, err := svc.FinalizeResult(ctx, carol, matchID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-owner finalize: got %v, want ErrUnauthorized", err)
	}
	if _, err := svc.FinalizeResult(ctx, owner, matchID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	info, _ := svc.Match(matchID)
	if info.Result.Stage != domain.ResultFinalized || info.Result.Outcome != domain.OutcomeHome {
		t.Errorf("result = %+v, want finalized home", info.Result)
	}
	if pts := svc.UserPoints(alice); pts != 3 {
		t.Errorf("winner points = %d, want 3", pts)
	}
	if pts := svc.UserPoints(bob); pts != 0 {
		t.Errorf("loser points = %d, want 0", pts)
	}

	// Finalized is terminal.
	if _, err := svc.FinalizeResult(ctx, owner, matchID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("re-finalize: got %v, want ErrInvalidState", err)
	}
}

// setupFinalizedMatch places three bets (alice and bob on home, carol on
// away) and finalizes the match as a home win. Net stakes are 750000,
// 2250000, and 3000000, so the winning shares are 1500000 for alice and
// 4500000 for bob.
func setupFinalizedMatch(t *testing.T, svc *Service, t0 time.Time) uint64 {
	t.Helper()
	matchID := setupMatch(t, svc, t0)
	ctx := context.Background()

	if _, err := svc.PlaceBet(ctx, alice, matchID, domain.OutcomeHome, 1_000_000); err != nil {
		t.Fatalf("bet alice: %v", err)
	}
	if _, err := svc.PlaceBet(ctx, bob, matchID, domain.OutcomeHome, 3_000_000); err != nil {
		t.Fatalf("bet bob: %v", err)
	}
	if _, err := svc.PlaceBet(ctx, carol, matchID, domain.OutcomeAway, 4_000_000); err != nil {
		t.Fatalf("bet carol: %v", err)
	}
	if _, err := svc.ProposeResult(ctx, carol, matchID, domain.OutcomeHome); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := svc.FinalizeResult(ctx, owner, matchID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return matchID
}

func TestPayoutWinners(t *testing.T) {
	treas := &fakeTreasury{failAt: -1}
	svc, t0 := newTestService(t, treas)
	matchID := setupFinalizedMatch(t, svc, t0)
	ctx := context.Background()

	events, err := svc.PayoutWinners(ctx, matchID)
	if err != nil {
		t.Fatalf("PayoutWinners: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d payout events, want 2", len(events))
	}
	// Acceptance order: alice before bob.
	if len(treas.calls) != 2 {
		t.Fatalf("got %d transfers, want 2", len(treas.calls))
	}
	if treas.calls[0].to != alice || treas.calls[0].amount != 1_500_000 {
		t.Errorf("first payout = %+v, want 1500000 to alice", treas.calls[0])
	}
	if treas.calls[1].to != bob || treas.calls[1].amount != 4_500_000 {
		t.Errorf("second payout = %+v, want 4500000 to bob", treas.calls[1])
	}

	// Paying again must be a no-op.
	events, err = svc.PayoutWinners(ctx, matchID)
	if err != nil {
		t.Fatalf("second PayoutWinners: %v", err)
	}
	if len(events) != 0 || len(treas.calls) != 2 {
		t.Errorf("repeat payout moved funds: %d events, %d transfers", len(events), len(treas.calls))
	}
}

func TestPayoutWinnersChunked(t *testing.T) {
	treas := &fakeTreasury{failAt: -1}
	svc, t0 := newTestService(t, treas)
	svc.params.MaxPayoutChunk = 1_500_000
	matchID := setupFinalizedMatch(t, svc, t0)
	ctx := context.Background()

	// First chunk fits only alice's share; bob's would exceed the cap.
	events, err := svc.PayoutWinners(ctx, matchID)
	if err != nil {
		t.Fatalf("chunk 1: %v", err)
	}
	if len(events) != 1 || treas.calls[0].to != alice {
		t.Fatalf("chunk 1 paid %d shares, want alice only", len(events))
	}

	// Second chunk picks up where the first stopped.
	svc.params.MaxPayoutChunk = 10_000_000
	events, err = svc.PayoutWinners(ctx, matchID)
	if err != nil {
		t.Fatalf("chunk 2: %v", err)
	}
	if len(events) != 1 || treas.calls[1].to != bob {
		t.Fatalf("chunk 2 paid %d shares, want bob only", len(events))
	}
}

func TestPayoutWinnersTransferFailure(t *testing.T) {
	treas := &fakeTreasury{failAt: 1} // alice succeeds, bob fails
	svc, t0 := newTestService(t, treas)
	matchID := setupFinalizedMatch(t, svc, t0)
	ctx := context.Background()

	events, err := svc.PayoutWinners(ctx, matchID)
	if !errors.Is(err, domain.ErrExternalCall) {
		t.Fatalf("got %v, want ErrExternalCall", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d partial events, want 1", len(events))
	}

	// The failed bet is not marked paid; the retry settles it exactly once.
	treas.failAt = -1
	events, err = svc.PayoutWinners(ctx, matchID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(events) != 1 || treas.calls[1].to != bob || treas.calls[1].amount != 4_500_000 {
		t.Fatalf("retry paid %d shares, want bob's 4500000", len(events))
	}
}

func TestPayoutWinnersRequiresFinalized(t *testing.T) {
	svc, t0 := newTestService(t, &fakeTreasury{failAt: -1})
	matchID := setupMatch(t, svc, t0)

	if _, err := svc.PayoutWinners(context.Background(), matchID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
}

func TestSendFinalPrize(t *testing.T) {
	treas := &fakeTreasury{failAt: -1}
	svc, t0 := newTestService(t, treas)
	ctx := context.Background()

	if _, err := svc.SendFinalPrize(ctx); !errors.Is(err, domain.ErrZeroAmount) {
		t.Fatalf("empty accumulator: got %v, want ErrZeroAmount", err)
	}

	matchID := setupMatch(t, svc, t0)
	if _, err := svc.PlaceBet(ctx, alice, matchID, domain.OutcomeHome, 1_000_000); err != nil {
		t.Fatalf("bet: %v", err)
	}

	if _, err := svc.SendFinalPrize(ctx); err != nil {
		t.Fatalf("SendFinalPrize: %v", err)
	}
	if len(treas.calls) != 1 || treas.calls[0].to != distributor || treas.calls[0].amount != 200_000 {
		t.Fatalf("transfer = %+v, want 200000 to distributor", treas.calls)
	}
	if snap := svc.Snapshot(); snap.FinalPrizeAccum != 0 {
		t.Errorf("accumulator = %d after send, want 0", snap.FinalPrizeAccum)
	}
	if _, err := svc.SendFinalPrize(ctx); !errors.Is(err, domain.ErrZeroAmount) {
		t.Fatalf("drained accumulator: got %v, want ErrZeroAmount", err)
	}
}

func TestWithdrawFeesRestoresOnFailure(t *testing.T) {
	treas := &fakeTreasury{failAt: 0}
	svc, t0 := newTestService(t, treas)
	ctx := context.Background()

	matchID := setupMatch(t, svc, t0)
	if _, err := svc.PlaceBet(ctx, alice, matchID, domain.OutcomeHome, 1_000_000); err != nil {
		t.Fatalf("bet: %v", err)
	}

	if _, err := svc.WithdrawFees(ctx); !errors.Is(err, domain.ErrExternalCall) {
		t.Fatalf("got %v, want ErrExternalCall", err)
	}
	if snap := svc.Snapshot(); snap.FeeAccum != 50_000 {
		t.Errorf("accumulator = %d after failed transfer, want restored 50000", snap.FeeAccum)
	}

	treas.failAt = -1
	if _, err := svc.WithdrawFees(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(treas.calls) != 1 || treas.calls[0].to != owner || treas.calls[0].amount != 50_000 {
		t.Fatalf("transfer = %+v, want 50000 to owner", treas.calls)
	}
}

func TestApplyCommand(t *testing.T) {
	svc, t0 := newTestService(t, &fakeTreasury{failAt: -1})
	ctx := context.Background()

	if err := svc.ApplyCommand(ctx, domain.MarketCommand{
		Type:   domain.CmdSetFeeBps,
		FeeBps: 300,
	}); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if snap := svc.Snapshot(); snap.FeeBps != 300 {
		t.Errorf("fee bps = %d, want 300", snap.FeeBps)
	}

	if err := svc.ApplyCommand(ctx, domain.MarketCommand{
		Type:      domain.CmdRegisterPhase,
		Name:      "final",
		StartTime: t0,
		EndTime:   t0.Add(7 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("register phase: %v", err)
	}
	if snap := svc.Snapshot(); len(snap.Phases) != 1 || snap.Phases[0].Name != "final" {
		t.Errorf("phases = %+v, want the commanded phase", snap.Phases)
	}
}

func TestMatchesByPhaseOrdered(t *testing.T) {
	svc, t0 := newTestService(t, &fakeTreasury{failAt: -1})
	ctx := context.Background()

	if _, err := svc.RegisterPhase(ctx, owner, "group-a", t0, t0.Add(time.Hour)); err != nil {
		t.Fatalf("phase: %v", err)
	}
	for _, pair := range [][2]string{{"BRA", "ARG"}, {"GER", "FRA"}, {"ESP", "POR"}} {
		if _, err := svc.RegisterMatch(ctx, owner, "group-a", pair[0], pair[1], t0.Add(time.Hour)); err != nil {
			t.Fatalf("match: %v", err)
		}
	}

	matches := svc.MatchesByPhase("group-a")
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	for i, m := range matches {
		if m.MatchID != uint64(i+1) {
			t.Errorf("match %d has id %d, want ascending ids", i, m.MatchID)
		}
	}
}
