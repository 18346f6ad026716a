package governance

import (
	"time"

	"bolao/internal/domain"
	"bolao/internal/ledger"
)

// TotalVotes is the saturating sum of a proposal's tallies.
func TotalVotes(p *domain.Proposal) uint32 {
	return ledger.SatAdd32(ledger.SatAdd32(p.Yes, p.No), p.Abstain)
}

// MeetsQuorum applies the participation rule: a zero quorum parameter always
// passes; otherwise at least max(2, quorumBps/1000) ballots must have been
// cast, and zero ballots never meet quorum.
func MeetsQuorum(p *domain.Proposal, quorumBps uint16) bool {
	if quorumBps == 0 {
		return true
	}
	total := TotalVotes(p)
	if total == 0 {
		return false
	}
	minVotes := uint32(quorumBps) / 1000
	if minVotes < 2 {
		minVotes = 2
	}
	return total >= minVotes
}

// ComputeStatus derives a proposal's status from its tallies, the quorum
// parameter, and the clock. It is a pure function: recomputing at the same
// instant always yields the same answer, regardless of any cached status.
func ComputeStatus(p *domain.Proposal, quorumBps uint16, now time.Time) domain.ProposalStatus {
	if p.Executed {
		return domain.ProposalExecuted
	}
	if now.Before(p.EndTime) {
		return domain.ProposalActive
	}
	if !MeetsQuorum(p, quorumBps) {
		return domain.ProposalDefeated
	}
	if p.Yes > p.No {
		return domain.ProposalSucceeded
	}
	return domain.ProposalDefeated
}
