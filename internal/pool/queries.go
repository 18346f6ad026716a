package pool

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"bolao/internal/domain"
)

// Read-only queries. None of these mutate state or touch collaborators.

// Match returns a copy of a single match.
func (s *Service) Match(matchID uint64) (domain.MatchInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.matches[matchID]
	if !ok {
		return domain.MatchInfo{}, fmt.Errorf("pool: match %d: %w", matchID, domain.ErrNotFound)
	}
	return cloneMatch(info), nil
}

// UserPoints returns a user's lifetime point total, zero if the user has
// never scored.
func (s *Service) UserPoints(user common.Address) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userPoints[user]
}

// MatchesByPhase returns all matches registered under a phase, ordered by
// match id.
func (s *Service) MatchesByPhase(phase string) []domain.MatchInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.MatchInfo
	for _, info := range s.matches {
		if info.Phase == phase {
			out = append(out, cloneMatch(info))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out
}

// Bet returns the bet a user holds on a match, if any.
func (s *Service) Bet(user common.Address, matchID uint64) (domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, ok := s.bets[betKey{user: user, matchID: matchID}]
	if !ok {
		return domain.Bet{}, fmt.Errorf("pool: bet by %s on match %d: %w", user.Hex(), matchID, domain.ErrNotFound)
	}
	return *bet, nil
}

// Snapshot returns the full pool state for external inspection.
func (s *Service) Snapshot() domain.PoolSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := domain.PoolSnapshot{
		Owner:            s.owner,
		PrizeDistributor: s.prizeDistributor,
		FeeBps:           s.params.FeeBps,
		FinalPrizeBps:    s.params.FinalPrizeBps,
		MaxPayoutChunk:   s.params.MaxPayoutChunk,
		FeeAccum:         s.feeAccum,
		FinalPrizeAccum:  s.finalPrizeAccum,
		UserPoints:       make(map[string]uint32, len(s.userPoints)),
	}

	for _, info := range s.matches {
		snap.Matches = append(snap.Matches, cloneMatch(info))
	}
	sort.Slice(snap.Matches, func(i, j int) bool { return snap.Matches[i].MatchID < snap.Matches[j].MatchID })

	for _, phase := range s.phases {
		snap.Phases = append(snap.Phases, phase)
	}
	sort.Slice(snap.Phases, func(i, j int) bool { return snap.Phases[i].Name < snap.Phases[j].Name })

	for user, pts := range s.userPoints {
		snap.UserPoints[user.Hex()] = pts
	}
	return snap
}

func cloneMatch(info *domain.MatchInfo) domain.MatchInfo {
	out := *info
	out.Participants = append([]common.Address(nil), info.Participants...)
	return out
}
