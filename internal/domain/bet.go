package domain

import "github.com/ethereum/go-ethereum/common"

// Bet is a single wager, keyed uniquely by (User, MatchID). Amount is the
// net stake after fee and final-prize deductions. Seq is the global
// acceptance sequence number; payouts process winning bets in ascending Seq
// so that chunked payout progress is deterministic. Paid flips exactly once.
type Bet struct {
	User     common.Address `json:"user"`
	MatchID  uint64         `json:"match_id"`
	Selected Outcome        `json:"selected"`
	Amount   uint64         `json:"amount"`
	Paid     bool           `json:"paid"`
	Seq      uint64         `json:"seq"`
}
