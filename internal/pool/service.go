// Package pool implements the betting pool engine: the event catalog (phases
// and matches), the wager store, and the operations that move funds through
// the parimutuel pools.
//
// The service processes one request at a time: a single mutex spans every
// operation from first validation to last state write, including the blocking
// age-verification call inside PlaceBet. That reproduces the one-logical-
// thread scheduling the engine is specified against — no interleaving is
// observable inside an operation, and an abort leaves no partial effect.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bolao/internal/domain"
	"bolao/internal/eventlog"
	"bolao/internal/ledger"
)

// Params are the governed runtime parameters of the pool engine. They change
// only through the governance command interface.
type Params struct {
	FeeBps         uint64
	FinalPrizeBps  uint64
	MaxPayoutChunk uint64
}

// winPoints is the fixed lifetime-point reward for a correct bet.
const winPoints = 3

type betKey struct {
	user    common.Address
	matchID uint64
}

// Service is the betting pool engine. All state is process-local and owned
// exclusively by this service; nothing else writes it.
type Service struct {
	mu sync.Mutex

	owner            common.Address
	prizeDistributor common.Address
	params           Params

	feeAccum        uint64
	finalPrizeAccum uint64

	phases     map[string]domain.MatchPhase
	matches    map[uint64]*domain.MatchInfo
	bets       map[betKey]*domain.Bet
	userPoints map[common.Address]uint32

	currentMatch uint64
	betSeq       uint64

	verifier domain.AgeVerifier
	treasury domain.Treasury
	emitter  *eventlog.Emitter
	logger   *slog.Logger
	now      func() time.Time
}

// Config seeds a Service.
type Config struct {
	Owner            common.Address
	PrizeDistributor common.Address
	Params           Params
}

// New constructs the pool engine. The emitter may be nil (events are then
// only returned to callers). now defaults to time.Now.
func New(cfg Config, verifier domain.AgeVerifier, treasury domain.Treasury, emitter *eventlog.Emitter, logger *slog.Logger) *Service {
	return &Service{
		owner:            cfg.Owner,
		prizeDistributor: cfg.PrizeDistributor,
		params:           cfg.Params,
		phases:           make(map[string]domain.MatchPhase),
		matches:          make(map[uint64]*domain.MatchInfo),
		bets:             make(map[betKey]*domain.Bet),
		userPoints:       make(map[common.Address]uint32),
		verifier:         verifier,
		treasury:         treasury,
		emitter:          emitter,
		logger:           logger.With(slog.String("component", "pool")),
		now:              time.Now,
	}
}

// SetClock overrides the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Owner returns the owner identity.
func (s *Service) Owner() common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// RegisterPhase inserts a new tournament phase. Owner only; phase names are
// unique forever.
func (s *Service) RegisterPhase(ctx context.Context, caller common.Address, name string, start, end time.Time) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.owner {
		return domain.Event{}, fmt.Errorf("pool: register phase: %w", domain.ErrUnauthorized)
	}
	if _, ok := s.phases[name]; ok {
		return domain.Event{}, fmt.Errorf("pool: phase %q: %w", name, domain.ErrDuplicate)
	}

	s.phases[name] = domain.MatchPhase{Name: name, StartTime: start, EndTime: end}

	ev := domain.PhaseRegisteredEvent(s.now(), name)
	s.emitter.Emit(ctx, ev)
	return ev, nil
}

// RegisterMatch allocates the next match id under an existing phase. Owner
// only.
func (s *Service) RegisterMatch(ctx context.Context, caller common.Address, phase, home, away string, kickOff time.Time) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.owner {
		return domain.Event{}, fmt.Errorf("pool: register match: %w", domain.ErrUnauthorized)
	}
	if _, ok := s.phases[phase]; !ok {
		return domain.Event{}, fmt.Errorf("pool: phase %q: %w", phase, domain.ErrNotFound)
	}

	id := s.currentMatch + 1
	s.currentMatch = id

	info := &domain.MatchInfo{
		MatchID: id,
		Phase:   phase,
		Home:    home,
		Away:    away,
		KickOff: kickOff,
		Result:  domain.Unresolved(),
	}
	s.matches[id] = info

	ev := domain.MatchRegisteredEvent(s.now(), *info)
	s.emitter.Emit(ctx, ev)
	return ev, nil
}

// PlaceBet accepts a wager of gross base units on a match outcome. The age
// check is a blocking external call; the operation commits nothing until it
// has passed, so a verification failure aborts with no partial effect.
func (s *Service) PlaceBet(ctx context.Context, caller common.Address, matchID uint64, selected domain.Outcome, gross uint64) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.matches[matchID]
	if !ok {
		return domain.Event{}, fmt.Errorf("pool: match %d: %w", matchID, domain.ErrNotFound)
	}
	if !s.now().Before(info.KickOff) {
		return domain.Event{}, fmt.Errorf("pool: match %d already kicked off: %w", matchID, domain.ErrInvalidState)
	}
	key := betKey{user: caller, matchID: matchID}
	if _, ok := s.bets[key]; ok {
		return domain.Event{}, fmt.Errorf("pool: bet on match %d by %s: %w", matchID, caller.Hex(), domain.ErrDuplicate)
	}

	over18, err := s.verifier.IsOver18(ctx, caller)
	if err != nil {
		return domain.Event{}, fmt.Errorf("pool: age verification: %w: %v", domain.ErrExternalCall, err)
	}
	if !over18 {
		return domain.Event{}, fmt.Errorf("pool: caller %s is not verified adult: %w", caller.Hex(), domain.ErrExternalCall)
	}

	fee := ledger.Cut(gross, s.params.FeeBps)
	prize := ledger.Cut(gross, s.params.FinalPrizeBps)
	net := ledger.SatSub(ledger.SatSub(gross, fee), prize)

	s.feeAccum = ledger.SatAdd(s.feeAccum, fee)
	s.finalPrizeAccum = ledger.SatAdd(s.finalPrizeAccum, prize)

	switch selected {
	case domain.OutcomeHome:
		info.PoolHome = ledger.SatAdd(info.PoolHome, net)
	case domain.OutcomeDraw:
		info.PoolDraw = ledger.SatAdd(info.PoolDraw, net)
	case domain.OutcomeAway:
		info.PoolAway = ledger.SatAdd(info.PoolAway, net)
	default:
		return domain.Event{}, fmt.Errorf("pool: %w: bad outcome %q", domain.ErrInvalidState, selected)
	}

	info.HasBets = true
	if !containsAddr(info.Participants, caller) {
		info.Participants = append(info.Participants, caller)
	}

	s.betSeq++
	s.bets[key] = &domain.Bet{
		User:     caller,
		MatchID:  matchID,
		Selected: selected,
		Amount:   net,
		Seq:      s.betSeq,
	}

	ev := domain.BetAcceptedEvent(s.now(), caller, matchID, selected, net)
	s.emitter.Emit(ctx, ev)
	return ev, nil
}

// ProposeResult records an oracle's claimed outcome. Any caller; trust is
// deferred to the owner's finalize step.
func (s *Service) ProposeResult(ctx context.Context, caller common.Address, matchID uint64, outcome domain.Outcome) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.matches[matchID]
	if !ok {
		return domain.Event{}, fmt.Errorf("pool: match %d: %w", matchID, domain.ErrNotFound)
	}
	if info.Result.Stage != domain.ResultUnresolved {
		return domain.Event{}, fmt.Errorf("pool: match %d result already %s: %w", matchID, info.Result.Stage, domain.ErrInvalidState)
	}

	info.Result = domain.Proposed(outcome, caller)

	ev := domain.ResultProposedEvent(s.now(), matchID, outcome, caller)
	s.emitter.Emit(ctx, ev)
	return ev, nil
}

// FinalizeResult promotes a proposed outcome to final. Owner only; the owner
// cannot substitute a different outcome at this step. Every participant whose
// bet matches the final outcome earns a fixed lifetime point reward.
func (s *Service) FinalizeResult(ctx context.Context, caller common.Address, matchID uint64) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.matches[matchID]
	if !ok {
		return domain.Event{}, fmt.Errorf("pool: match %d: %w", matchID, domain.ErrNotFound)
	}
	if info.Result.Stage != domain.ResultProposed {
		return domain.Event{}, fmt.Errorf("pool: match %d result is %s, not proposed: %w", matchID, info.Result.Stage, domain.ErrInvalidState)
	}
	if caller != s.owner {
		return domain.Event{}, fmt.Errorf("pool: finalize result: %w", domain.ErrUnauthorized)
	}

	outcome := info.Result.Outcome
	info.Result = domain.Finalized(outcome)

	for _, participant := range info.Participants {
		bet, ok := s.bets[betKey{user: participant, matchID: matchID}]
		if !ok || bet.Selected != outcome {
			continue
		}
		s.userPoints[participant] = ledger.SatAdd32(s.userPoints[participant], winPoints)
	}

	ev := domain.ResultFinalizedEvent(s.now(), matchID, outcome)
	s.emitter.Emit(ctx, ev)
	return ev, nil
}

// PayoutWinners settles up to MaxPayoutChunk of winning shares for a
// finalized match and returns one WinnerPaid event per transfer. It is safe
// to call repeatedly — each bet is paid exactly once — and an empty result
// means either nothing is left to pay or the next share would not fit in
// this chunk. Bets are processed in ascending acceptance order so chunk
// progress is deterministic.
func (s *Service) PayoutWinners(ctx context.Context, matchID uint64) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("pool: match %d: %w", matchID, domain.ErrNotFound)
	}
	if info.Result.Stage != domain.ResultFinalized {
		return nil, fmt.Errorf("pool: match %d not finalized: %w", matchID, domain.ErrInvalidState)
	}

	outcome := info.Result.Outcome
	totalPool := info.TotalPool()
	winningPool := info.PoolFor(outcome)
	if winningPool == 0 {
		return nil, nil
	}

	var pending []*domain.Bet
	for _, bet := range s.bets {
		if bet.MatchID == matchID && bet.Selected == outcome && !bet.Paid {
			pending = append(pending, bet)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Seq < pending[j].Seq })

	var paid uint64
	var events []domain.Event
	for _, bet := range pending {
		share := ledger.MulDiv(bet.Amount, totalPool, winningPool)
		if ledger.SatAdd(paid, share) > s.params.MaxPayoutChunk {
			break
		}

		// Mark before transferring so a re-entered transfer step can never
		// pay the same bet twice.
		bet.Paid = true
		if err := s.treasury.Transfer(ctx, bet.User, share); err != nil {
			bet.Paid = false
			s.emitter.EmitAll(ctx, events)
			return events, fmt.Errorf("pool: payout to %s: %w: %v", bet.User.Hex(), domain.ErrExternalCall, err)
		}

		events = append(events, domain.WinnerPaidEvent(s.now(), matchID, bet.User, share))
		paid = ledger.SatAdd(paid, share)
	}

	s.emitter.EmitAll(ctx, events)
	return events, nil
}

// SendFinalPrize transfers the accumulated final-prize fund to the configured
// prize distributor. The accumulator is zeroed with the transfer decision:
// it is reset before the transfer and restored only if the transfer itself
// fails.
func (s *Service) SendFinalPrize(ctx context.Context) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount := s.finalPrizeAccum
	if amount == 0 {
		return domain.Event{}, fmt.Errorf("pool: final prize: %w", domain.ErrZeroAmount)
	}

	s.finalPrizeAccum = 0
	if err := s.treasury.Transfer(ctx, s.prizeDistributor, amount); err != nil {
		s.finalPrizeAccum = amount
		return domain.Event{}, fmt.Errorf("pool: send final prize: %w: %v", domain.ErrExternalCall, err)
	}

	ev := domain.FinalPrizeSentEvent(s.now(), amount, s.prizeDistributor)
	s.emitter.Emit(ctx, ev)
	return ev, nil
}

// WithdrawFees transfers the accumulated operator fees to the owner, with
// the same reset-before-transfer discipline as SendFinalPrize.
func (s *Service) WithdrawFees(ctx context.Context) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount := s.feeAccum
	if amount == 0 {
		return domain.Event{}, fmt.Errorf("pool: fees: %w", domain.ErrZeroAmount)
	}

	s.feeAccum = 0
	if err := s.treasury.Transfer(ctx, s.owner, amount); err != nil {
		s.feeAccum = amount
		return domain.Event{}, fmt.Errorf("pool: withdraw fees: %w: %v", domain.ErrExternalCall, err)
	}

	ev := domain.FeeWithdrawnEvent(s.now(), amount, s.owner)
	s.emitter.Emit(ctx, ev)
	return ev, nil
}

func containsAddr(addrs []common.Address, a common.Address) bool {
	for _, x := range addrs {
		if x == a {
			return true
		}
	}
	return false
}
