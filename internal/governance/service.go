// Package governance implements the proposal engine: stakeholders propose
// parameter changes and new events, vote on them, and execution dispatches
// approved changes as commands to the betting pool service.
//
// Like the pool engine, the service holds one mutex across each whole
// operation, giving the single-logical-thread semantics the state machine is
// specified against.
package governance

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

type voteKey struct {
	proposalID uint64
	voter      common.Address
}

// Config seeds a governance Service.
type Config struct {
	Owner        common.Address
	MarketTarget common.Address
	QuorumBps    uint16
	VotingPeriod time.Duration
}

// Service is the governance proposal engine.
type Service struct {
	mu sync.Mutex

	owner        common.Address
	marketTarget common.Address
	quorumBps    uint16
	votingPeriod time.Duration

	proposalCount uint64
	proposals     map[uint64]*domain.Proposal
	votes         map[voteKey]domain.VoteChoice

	bus     domain.CommandBus
	emitter *eventlog.Emitter
	logger  *slog.Logger
	now     func() time.Time
}

// New constructs the governance engine.
func New(cfg Config, bus domain.CommandBus, emitter *eventlog.Emitter, logger *slog.Logger) *Service {
	return &Service{
		owner:        cfg.Owner,
		marketTarget: cfg.MarketTarget,
		quorumBps:    cfg.QuorumBps,
		votingPeriod: cfg.VotingPeriod,
		proposals:    make(map[uint64]*domain.Proposal),
		votes:        make(map[voteKey]domain.VoteChoice),
		bus:          bus,
		emitter:      emitter,
		logger:       logger.With(slog.String("component", "governance")),
		now:          time.Now,
	}
}

// SetClock overrides the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetMarketTarget points command dispatch at a new pool service identity.
// Owner only.
func (s *Service) SetMarketTarget(ctx context.Context, caller, target common.Address) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.owner {
		return domain.Event{}, fmt.Errorf("governance: set market target: %w", domain.ErrUnauthorized)
	}
	s.marketTarget = target

	ev := domain.ParamUpdatedEvent(s.now(), "market_target")
	s.emitter.Emit(ctx, ev)
	return ev, nil
}

// SetOwner hands ownership to a new identity. Owner only.
func (s *Service) SetOwner(ctx context.Context, caller, newOwner common.Address) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.owner {
		return domain.Event{}, fmt.Errorf("governance: set owner: %w", domain.ErrUnauthorized)
	}
	s.owner = newOwner

	ev := domain.ParamUpdatedEvent(s.now(), "owner")
	s.emitter.Emit(ctx, ev)
	return ev, nil
}

// CreateProposal opens a new proposal. Any caller. The voting window is
// snapshotted from the current voting-period parameter and never moves.
func (s *Service) CreateProposal(ctx context.Context, proposer common.Address, kind domain.ProposalKind, description string) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := kind.Validate(); err != nil {
		return domain.Event{}, fmt.Errorf("governance: create proposal: %w: %v", domain.ErrInvalidState, err)
	}

	now := s.now()
	id := s.proposalCount + 1
	s.proposalCount = id

	s.proposals[id] = &domain.Proposal{
		ID:          id,
		Proposer:    proposer,
		Kind:        kind,
		Description: description,
		StartTime:   now,
		EndTime:     now.Add(s.votingPeriod),
		Status:      domain.ProposalActive,
	}

	ev := domain.ProposalCreatedEvent(now, id, proposer)
	s.emitter.Emit(ctx, ev)
	return ev, nil
}

// Vote casts a ballot on an active proposal. One ballot per (proposal,
// voter) pair, forever.
func (s *Service) Vote(ctx context.Context, voter common.Address, proposalID uint64, choice domain.VoteChoice) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[proposalID]
	if !ok {
		return domain.Event{}, fmt.Errorf("governance: proposal %d: %w", proposalID, domain.ErrNotFound)
	}

	now := s.now()
	if status := ComputeStatus(p, s.quorumBps, now); status != domain.ProposalActive {
		return domain.Event{}, fmt.Errorf("governance: proposal %d is %s: %w", proposalID, status, domain.ErrInvalidState)
	}
	if !now.Before(p.EndTime) {
		return domain.Event{}, fmt.Errorf("governance: proposal %d voting ended: %w", proposalID, domain.ErrInvalidState)
	}
	key := voteKey{proposalID: proposalID, voter: voter}
	if _, ok := s.votes[key]; ok {
		return domain.Event{}, fmt.Errorf("governance: vote by %s on proposal %d: %w", voter.Hex(), proposalID, domain.ErrDuplicate)
	}

	switch choice {
	case domain.VoteYes:
		p.Yes = ledger.SatAdd32(p.Yes, 1)
	case domain.VoteNo:
		p.No = ledger.SatAdd32(p.No, 1)
	case domain.VoteAbstain:
		p.Abstain = ledger.SatAdd32(p.Abstain, 1)
	default:
		return domain.Event{}, fmt.Errorf("governance: %w: bad choice %q", domain.ErrInvalidState, choice)
	}
	s.votes[key] = choice

	ev := domain.VotedEvent(now, proposalID, voter, choice)
	s.emitter.Emit(ctx, ev)
	return ev, nil
}

// FinalizeProposal recomputes the derived status and caches it on the
// proposal. It is a snapshot step only; nothing is executed.
func (s *Service) FinalizeProposal(ctx context.Context, proposalID uint64) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[proposalID]
	if !ok {
		return domain.Event{}, fmt.Errorf("governance: proposal %d: %w", proposalID, domain.ErrNotFound)
	}

	now := s.now()
	p.Status = ComputeStatus(p, s.quorumBps, now)

	ev := domain.ProposalFinalizedEvent(now, proposalID, p.Status)
	s.emitter.Emit(ctx, ev)
	return ev, nil
}

// Execute settles a proposal whose voting window has closed. The status is
// recomputed fresh, ignoring any cached value. A defeated proposal is a
// no-op outcome (finalize event only), not an error. A succeeded proposal
// dispatches exactly one command to the pool service — or, for the two
// governance-local kinds, mutates this service directly — and is then
// permanently marked executed.
func (s *Service) Execute(ctx context.Context, proposalID uint64) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[proposalID]
	if !ok {
		return nil, fmt.Errorf("governance: proposal %d: %w", proposalID, domain.ErrNotFound)
	}

	now := s.now()
	computed := ComputeStatus(p, s.quorumBps, now)
	if computed == domain.ProposalActive {
		return nil, fmt.Errorf("governance: proposal %d still active: %w", proposalID, domain.ErrInvalidState)
	}
	if computed != domain.ProposalSucceeded {
		p.Status = computed
		ev := domain.ProposalFinalizedEvent(now, proposalID, computed)
		s.emitter.Emit(ctx, ev)
		return []domain.Event{ev}, nil
	}
	if p.Executed {
		return nil, fmt.Errorf("governance: proposal %d already executed: %w", proposalID, domain.ErrInvalidState)
	}

	var events []domain.Event
	if cmd, ok := domain.CommandFor(p.Kind); ok {
		if err := s.bus.Dispatch(ctx, s.marketTarget, cmd); err != nil {
			return nil, fmt.Errorf("governance: dispatch for proposal %d: %w: %v", proposalID, domain.ErrExternalCall, err)
		}
		events = append(events, domain.CommandDispatchedEvent(now, proposalID))
	} else {
		switch p.Kind.Type {
		case domain.KindSetQuorum:
			s.quorumBps = p.Kind.QuorumBps
		case domain.KindSetVotingPeriod:
			s.votingPeriod = p.Kind.VotingPeriod
		}
		events = append(events, domain.ParamUpdatedEvent(now, string(p.Kind.Type)))
	}

	p.Executed = true
	p.Status = domain.ProposalExecuted
	events = append(events, domain.ProposalExecutedEvent(now, proposalID))

	s.emitter.EmitAll(ctx, events)
	return events, nil
}

// Proposal returns a copy of a single proposal.
func (s *Service) Proposal(proposalID uint64) (domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[proposalID]
	if !ok {
		return domain.Proposal{}, fmt.Errorf("governance: proposal %d: %w", proposalID, domain.ErrNotFound)
	}
	return *p, nil
}

// Proposals returns every proposal ordered by id.
func (s *Service) Proposals() []domain.Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// VoteOf returns the ballot a voter cast on a proposal, if any.
func (s *Service) VoteOf(proposalID uint64, voter common.Address) (domain.VoteChoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	choice, ok := s.votes[voteKey{proposalID: proposalID, voter: voter}]
	if !ok {
		return "", fmt.Errorf("governance: vote by %s on proposal %d: %w", voter.Hex(), proposalID, domain.ErrNotFound)
	}
	return choice, nil
}

// Snapshot returns the governance parameter state.
func (s *Service) Snapshot() domain.GovernanceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.GovernanceSnapshot{
		Owner:         s.owner,
		MarketTarget:  s.marketTarget,
		QuorumBps:     s.quorumBps,
		VotingPeriod:  s.votingPeriod,
		ProposalCount: s.proposalCount,
	}
}
