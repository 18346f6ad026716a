package domain

import (
	"fmt"
	"time"
)

// MarketCommandType tags a command on the governance -> pool stream.
type MarketCommandType string

const (
	CmdRegisterPhase     MarketCommandType = "register_phase"
	CmdRegisterMatch     MarketCommandType = "register_match"
	CmdSetFeeBps         MarketCommandType = "set_fee_bps"
	CmdSetFinalPrizeBps  MarketCommandType = "set_final_prize_bps"
	CmdSetMaxPayoutChunk MarketCommandType = "set_max_payout_chunk"
)

// MarketCommand is the tagged command set the betting pool service consumes
// from governance. Delivery is fire-and-forget: the sender never observes
// the outcome of applying the command.
type MarketCommand struct {
	Type MarketCommandType `json:"type"`

	Name      string    `json:"name,omitempty"`
	StartTime time.Time `json:"start_time,omitzero"`
	EndTime   time.Time `json:"end_time,omitzero"`

	Phase   string    `json:"phase,omitempty"`
	Home    string    `json:"home,omitempty"`
	Away    string    `json:"away,omitempty"`
	KickOff time.Time `json:"kick_off,omitzero"`

	FeeBps         uint64 `json:"fee_bps,omitempty"`
	FinalPrizeBps  uint64 `json:"final_prize_bps,omitempty"`
	MaxPayoutChunk uint64 `json:"max_payout_chunk,omitempty"`
}

// Validate checks that the command tag is known.
func (c MarketCommand) Validate() error {
	switch c.Type {
	case CmdRegisterPhase, CmdRegisterMatch, CmdSetFeeBps,
		CmdSetFinalPrizeBps, CmdSetMaxPayoutChunk:
		return nil
	}
	return fmt.Errorf("unknown market command %q", c.Type)
}

// CommandFor maps a dispatchable proposal kind to its outbound command.
// Local kinds (SetQuorum, SetVotingPeriod) have no command; ok is false.
func CommandFor(k ProposalKind) (MarketCommand, bool) {
	switch k.Type {
	case KindAddPhase:
		return MarketCommand{
			Type:      CmdRegisterPhase,
			Name:      k.Name,
			StartTime: k.StartTime,
			EndTime:   k.EndTime,
		}, true
	case KindAddMatch:
		return MarketCommand{
			Type:    CmdRegisterMatch,
			Phase:   k.Phase,
			Home:    k.Home,
			Away:    k.Away,
			KickOff: k.KickOff,
		}, true
	case KindSetFeeBps:
		return MarketCommand{Type: CmdSetFeeBps, FeeBps: k.FeeBps}, true
	case KindSetFinalPrizeBps:
		return MarketCommand{Type: CmdSetFinalPrizeBps, FinalPrizeBps: k.FinalPrizeBps}, true
	case KindSetMaxPayoutChunk:
		return MarketCommand{Type: CmdSetMaxPayoutChunk, MaxPayoutChunk: k.MaxPayoutChunk}, true
	}
	return MarketCommand{}, false
}
