package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventKind names a domain event on the observable event log.
type EventKind string

const (
	// Betting pool events.
	EvPhaseRegistered EventKind = "phase_registered"
	EvMatchRegistered EventKind = "match_registered"
	EvBetAccepted     EventKind = "bet_accepted"
	EvResultProposed  EventKind = "result_proposed"
	EvResultFinalized EventKind = "result_finalized"
	EvWinnerPaid      EventKind = "winner_paid"
	EvFinalPrizeSent  EventKind = "final_prize_sent"
	EvFeeWithdrawn    EventKind = "fee_withdrawn"

	// Governance events.
	EvProposalCreated   EventKind = "proposal_created"
	EvVoted             EventKind = "voted"
	EvProposalFinalized EventKind = "proposal_finalized"
	EvProposalExecuted  EventKind = "proposal_executed"
	EvCommandDispatched EventKind = "market_command_dispatched"
	EvParamUpdated      EventKind = "governance_param_updated"
)

// Event is one entry of the event log. Events are informational: they are
// journaled and broadcast for observers but never drive internal logic.
type Event struct {
	ID     string         `json:"id"`
	Kind   EventKind      `json:"kind"`
	At     time.Time      `json:"at"`
	Detail map[string]any `json:"detail"`
}

// NewEvent builds an event with a fresh id.
func NewEvent(kind EventKind, at time.Time, detail map[string]any) Event {
	return Event{
		ID:     uuid.New().String(),
		Kind:   kind,
		At:     at,
		Detail: detail,
	}
}

// Convenience constructors keep detail keys consistent across services.

func PhaseRegisteredEvent(at time.Time, name string) Event {
	return NewEvent(EvPhaseRegistered, at, map[string]any{"name": name})
}

func MatchRegisteredEvent(at time.Time, m MatchInfo) Event {
	return NewEvent(EvMatchRegistered, at, map[string]any{
		"match_id": m.MatchID,
		"phase":    m.Phase,
		"home":     m.Home,
		"away":     m.Away,
		"kick_off": m.KickOff,
	})
}

func BetAcceptedEvent(at time.Time, user common.Address, matchID uint64, selected Outcome, amount uint64) Event {
	return NewEvent(EvBetAccepted, at, map[string]any{
		"user":     user.Hex(),
		"match_id": matchID,
		"selected": selected,
		"amount":   amount,
	})
}

func ResultProposedEvent(at time.Time, matchID uint64, outcome Outcome, oracle common.Address) Event {
	return NewEvent(EvResultProposed, at, map[string]any{
		"match_id": matchID,
		"outcome":  outcome,
		"oracle":   oracle.Hex(),
	})
}

func ResultFinalizedEvent(at time.Time, matchID uint64, outcome Outcome) Event {
	return NewEvent(EvResultFinalized, at, map[string]any{
		"match_id": matchID,
		"outcome":  outcome,
	})
}

func WinnerPaidEvent(at time.Time, matchID uint64, user common.Address, share uint64) Event {
	return NewEvent(EvWinnerPaid, at, map[string]any{
		"match_id": matchID,
		"user":     user.Hex(),
		"share":    share,
	})
}

func FinalPrizeSentEvent(at time.Time, amount uint64, to common.Address) Event {
	return NewEvent(EvFinalPrizeSent, at, map[string]any{
		"amount": amount,
		"to":     to.Hex(),
	})
}

func FeeWithdrawnEvent(at time.Time, amount uint64, to common.Address) Event {
	return NewEvent(EvFeeWithdrawn, at, map[string]any{
		"amount": amount,
		"to":     to.Hex(),
	})
}

func ProposalCreatedEvent(at time.Time, id uint64, proposer common.Address) Event {
	return NewEvent(EvProposalCreated, at, map[string]any{
		"proposal_id": id,
		"proposer":    proposer.Hex(),
	})
}

func VotedEvent(at time.Time, id uint64, voter common.Address, choice VoteChoice) Event {
	return NewEvent(EvVoted, at, map[string]any{
		"proposal_id": id,
		"voter":       voter.Hex(),
		"choice":      choice,
	})
}

func ProposalFinalizedEvent(at time.Time, id uint64, status ProposalStatus) Event {
	return NewEvent(EvProposalFinalized, at, map[string]any{
		"proposal_id": id,
		"status":      status,
	})
}

func ProposalExecutedEvent(at time.Time, id uint64) Event {
	return NewEvent(EvProposalExecuted, at, map[string]any{"proposal_id": id})
}

func CommandDispatchedEvent(at time.Time, id uint64) Event {
	return NewEvent(EvCommandDispatched, at, map[string]any{"proposal_id": id})
}

func ParamUpdatedEvent(at time.Time, param string) Event {
	return NewEvent(EvParamUpdated, at, map[string]any{"param": param})
}
