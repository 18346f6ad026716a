package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MatchPhase is a tournament stage (group stage, semifinal, ...). Phases are
// created by the owner, keyed by name, and never change afterwards.
type MatchPhase struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// MatchInfo is a registered match together with its parimutuel pools.
// PoolHome/PoolDraw/PoolAway accumulate net stakes (gross minus fee and
// final-prize cuts); their sum always equals the sum of recorded bet amounts.
type MatchInfo struct {
	MatchID      uint64           `json:"match_id"`
	Phase        string           `json:"phase"`
	Home         string           `json:"home"`
	Away         string           `json:"away"`
	KickOff      time.Time        `json:"kick_off"`
	Result       ResultStatus     `json:"result"`
	PoolHome     uint64           `json:"pool_home"`
	PoolDraw     uint64           `json:"pool_draw"`
	PoolAway     uint64           `json:"pool_away"`
	HasBets      bool             `json:"has_bets"`
	Participants []common.Address `json:"participants"`
}

// TotalPool is the sum of all three pools, saturating on overflow.
func (m *MatchInfo) TotalPool() uint64 {
	total := m.PoolHome
	if total+m.PoolDraw < total {
		return ^uint64(0)
	}
	total += m.PoolDraw
	if total+m.PoolAway < total {
		return ^uint64(0)
	}
	return total + m.PoolAway
}

// PoolFor returns the pool credited for the given outcome.
func (m *MatchInfo) PoolFor(o Outcome) uint64 {
	switch o {
	case OutcomeHome:
		return m.PoolHome
	case OutcomeDraw:
		return m.PoolDraw
	default:
		return m.PoolAway
	}
}

// PoolSnapshot is the full read-only state of the betting pool service,
// returned by the snapshot query.
type PoolSnapshot struct {
	Owner            common.Address    `json:"owner"`
	PrizeDistributor common.Address    `json:"prize_distributor"`
	FeeBps           uint64            `json:"fee_bps"`
	FinalPrizeBps    uint64            `json:"final_prize_bps"`
	MaxPayoutChunk   uint64            `json:"max_payout_chunk"`
	FeeAccum         uint64            `json:"fee_accum"`
	FinalPrizeAccum  uint64            `json:"final_prize_accum"`
	Matches          []MatchInfo       `json:"matches"`
	Phases           []MatchPhase      `json:"phases"`
	UserPoints       map[string]uint32 `json:"user_points"`
}
