package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Outcome is one of the three results a football match can settle on.
type Outcome string

const (
	OutcomeHome Outcome = "home"
	OutcomeDraw Outcome = "draw"
	OutcomeAway Outcome = "away"
)

// ParseOutcome validates a wire-level outcome string.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case OutcomeHome, OutcomeDraw, OutcomeAway:
		return Outcome(s), nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

// ResultStage is the lifecycle stage of a match result.
type ResultStage string

const (
	ResultUnresolved ResultStage = "unresolved"
	ResultProposed   ResultStage = "proposed"
	ResultFinalized  ResultStage = "finalized"
)

// ResultStatus is the tagged result state of a match. Outcome is meaningful
// in the proposed and finalized stages; Oracle only in the proposed stage.
// Transitions go unresolved -> proposed -> finalized and never backwards.
type ResultStatus struct {
	Stage   ResultStage    `json:"stage"`
	Outcome Outcome        `json:"outcome,omitempty"`
	Oracle  common.Address `json:"oracle,omitempty"`
}

// Unresolved returns the initial result state.
func Unresolved() ResultStatus {
	return ResultStatus{Stage: ResultUnresolved}
}

// Proposed returns the result state after an oracle proposal.
func Proposed(outcome Outcome, oracle common.Address) ResultStatus {
	return ResultStatus{Stage: ResultProposed, Outcome: outcome, Oracle: oracle}
}

// Finalized returns the terminal result state. The oracle identity is not
// carried forward; only the settled outcome matters after finalization.
func Finalized(outcome Outcome) ResultStatus {
	return ResultStatus{Stage: ResultFinalized, Outcome: outcome}
}
