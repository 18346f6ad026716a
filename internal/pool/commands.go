package pool

import (
	"context"
	"fmt"

	"bolao/internal/domain"
)

// ApplyCommand applies a governance command as the owner. Commands arrive on
// the fire-and-forget bus, so the dispatcher never sees this result; the
// caller (the consumer loop) logs failures and moves on.
func (s *Service) ApplyCommand(ctx context.Context, cmd domain.MarketCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("pool: apply command: %w", err)
	}

	switch cmd.Type {
	case domain.CmdRegisterPhase:
		_, err := s.RegisterPhase(ctx, s.Owner(), cmd.Name, cmd.StartTime, cmd.EndTime)
		return err
	case domain.CmdRegisterMatch:
		_, err := s.RegisterMatch(ctx, s.Owner(), cmd.Phase, cmd.Home, cmd.Away, cmd.KickOff)
		return err
	case domain.CmdSetFeeBps:
		s.setParam(func(p *Params) { p.FeeBps = cmd.FeeBps })
	case domain.CmdSetFinalPrizeBps:
		s.setParam(func(p *Params) { p.FinalPrizeBps = cmd.FinalPrizeBps })
	case domain.CmdSetMaxPayoutChunk:
		s.setParam(func(p *Params) { p.MaxPayoutChunk = cmd.MaxPayoutChunk })
	}
	return nil
}

func (s *Service) setParam(mutate func(*Params)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.params)
}
