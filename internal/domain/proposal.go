package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// VoteChoice is a single governance ballot option.
type VoteChoice string

const (
	VoteYes     VoteChoice = "yes"
	VoteNo      VoteChoice = "no"
	VoteAbstain VoteChoice = "abstain"
)

// ParseVoteChoice validates a wire-level vote choice.
func ParseVoteChoice(s string) (VoteChoice, error) {
	switch VoteChoice(s) {
	case VoteYes, VoteNo, VoteAbstain:
		return VoteChoice(s), nil
	}
	return "", fmt.Errorf("unknown vote choice %q", s)
}

// ProposalStatus is the derived lifecycle state of a proposal. Expired is
// kept for wire compatibility with older clients but is never produced by
// the status derivation.
type ProposalStatus string

const (
	ProposalActive    ProposalStatus = "active"
	ProposalDefeated  ProposalStatus = "defeated"
	ProposalSucceeded ProposalStatus = "succeeded"
	ProposalExecuted  ProposalStatus = "executed"
	ProposalExpired   ProposalStatus = "expired"
)

// ProposalKindType tags the action a proposal asks for.
type ProposalKindType string

const (
	KindSetFeeBps         ProposalKindType = "set_fee_bps"
	KindSetFinalPrizeBps  ProposalKindType = "set_final_prize_bps"
	KindSetMaxPayoutChunk ProposalKindType = "set_max_payout_chunk"
	KindAddPhase          ProposalKindType = "add_phase"
	KindAddMatch          ProposalKindType = "add_match"
	KindSetQuorum         ProposalKindType = "set_quorum"
	KindSetVotingPeriod   ProposalKindType = "set_voting_period"
)

// ProposalKind is the tagged payload of a proposal. Only the fields relevant
// to Type are set. The first five kinds dispatch a MarketCommand to the
// betting pool service; SetQuorum and SetVotingPeriod mutate the governance
// service itself.
type ProposalKind struct {
	Type ProposalKindType `json:"type"`

	FeeBps         uint64 `json:"fee_bps,omitempty"`
	FinalPrizeBps  uint64 `json:"final_prize_bps,omitempty"`
	MaxPayoutChunk uint64 `json:"max_payout_chunk,omitempty"`

	Name      string    `json:"name,omitempty"`
	StartTime time.Time `json:"start_time,omitzero"`
	EndTime   time.Time `json:"end_time,omitzero"`

	Phase   string    `json:"phase,omitempty"`
	Home    string    `json:"home,omitempty"`
	Away    string    `json:"away,omitempty"`
	KickOff time.Time `json:"kick_off,omitzero"`

	QuorumBps    uint16        `json:"quorum_bps,omitempty"`
	VotingPeriod time.Duration `json:"voting_period,omitempty"`
}

// Local reports whether the kind mutates governance state directly instead
// of dispatching a command to the pool service.
func (k ProposalKind) Local() bool {
	return k.Type == KindSetQuorum || k.Type == KindSetVotingPeriod
}

// Validate checks that the kind tag is known.
func (k ProposalKind) Validate() error {
	switch k.Type {
	case KindSetFeeBps, KindSetFinalPrizeBps, KindSetMaxPayoutChunk,
		KindAddPhase, KindAddMatch, KindSetQuorum, KindSetVotingPeriod:
		return nil
	}
	return fmt.Errorf("unknown proposal kind %q", k.Type)
}

// Proposal is a governance proposal. EndTime is snapshotted at creation from
// the voting-period parameter and never changes, even if the parameter does.
// Status is a cached value; the authoritative state is always recomputed
// from tallies, quorum, and the clock.
type Proposal struct {
	ID          uint64         `json:"id"`
	Proposer    common.Address `json:"proposer"`
	Kind        ProposalKind   `json:"kind"`
	Description string         `json:"description"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
	Yes         uint32         `json:"yes"`
	No          uint32         `json:"no"`
	Abstain     uint32         `json:"abstain"`
	Status      ProposalStatus `json:"status"`
	Executed    bool           `json:"executed"`
}

// VoteRecord is a cast ballot, immutable once recorded.
type VoteRecord struct {
	ProposalID uint64         `json:"proposal_id"`
	Voter      common.Address `json:"voter"`
	Choice     VoteChoice     `json:"choice"`
}

// GovernanceSnapshot is the read-only parameter state of the governance
// service.
type GovernanceSnapshot struct {
	Owner         common.Address `json:"owner"`
	MarketTarget  common.Address `json:"market_target"`
	QuorumBps     uint16         `json:"quorum_bps"`
	VotingPeriod  time.Duration  `json:"voting_period"`
	ProposalCount uint64         `json:"proposal_count"`
}
