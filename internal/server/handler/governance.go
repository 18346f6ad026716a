package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"bolao/internal/domain"
)

// GovernanceService defines what the governance handler requires from the
// service layer.
type GovernanceService interface {
	CreateProposal(ctx context.Context, proposer common.Address, kind domain.ProposalKind, description string) (domain.Event, error)
	Vote(ctx context.Context, voter common.Address, proposalID uint64, choice domain.VoteChoice) (domain.Event, error)
	FinalizeProposal(ctx context.Context, proposalID uint64) (domain.Event, error)
	Execute(ctx context.Context, proposalID uint64) ([]domain.Event, error)
	SetMarketTarget(ctx context.Context, caller, target common.Address) (domain.Event, error)
	SetOwner(ctx context.Context, caller, newOwner common.Address) (domain.Event, error)

	Proposal(proposalID uint64) (domain.Proposal, error)
	Proposals() []domain.Proposal
	VoteOf(proposalID uint64, voter common.Address) (domain.VoteChoice, error)
	Snapshot() domain.GovernanceSnapshot
}

// GovernanceHandler serves the governance HTTP endpoints.
type GovernanceHandler struct {
	gov    GovernanceService
	logger *slog.Logger
}

// NewGovernanceHandler creates a GovernanceHandler.
func NewGovernanceHandler(gov GovernanceService, logger *slog.Logger) *GovernanceHandler {
	return &GovernanceHandler{
		gov:    gov,
		logger: logHandler(logger, "governance"),
	}
}

// GetSnapshot returns the governance parameter state.
// GET /api/governance
func (h *GovernanceHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gov.Snapshot())
}

type createProposalRequest struct {
	Caller      string              `json:"caller"`
	Kind        domain.ProposalKind `json:"kind"`
	Description string              `json:"description"`
}

// CreateProposal opens a new proposal.
// POST /api/governance/proposals
func (h *GovernanceHandler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req createProposalRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	caller, err := signedCaller(r, body, req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ev, err := h.gov.CreateProposal(r.Context(), caller, req.Kind, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// ListProposals returns every proposal ordered by id.
// GET /api/governance/proposals
func (h *GovernanceHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"proposals": h.gov.Proposals(),
	})
}

// GetProposal returns a single proposal.
// GET /api/governance/proposals/{id}
func (h *GovernanceHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.gov.Proposal(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type voteRequest struct {
	Caller string `json:"caller"`
	Choice string `json:"choice"`
}

// Vote casts a ballot on an active proposal.
// POST /api/governance/proposals/{id}/votes
func (h *GovernanceHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req voteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	choice, err := domain.ParseVoteChoice(req.Choice)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := signedCaller(r, body, req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ev, err := h.gov.Vote(r.Context(), caller, id, choice)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// GetVote returns the ballot a voter cast on a proposal.
// GET /api/governance/proposals/{id}/votes/{voter}
func (h *GovernanceHandler) GetVote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	voter, err := parseAddress(r.PathValue("voter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	choice, err := h.gov.VoteOf(id, voter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.VoteRecord{
		ProposalID: id,
		Voter:      voter,
		Choice:     choice,
	})
}

// FinalizeProposal recomputes and caches a proposal's derived status.
// POST /api/governance/proposals/{id}/finalize
func (h *GovernanceHandler) FinalizeProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := h.gov.FinalizeProposal(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Execute settles a proposal whose voting window has closed.
// POST /api/governance/proposals/{id}/execute
func (h *GovernanceHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := h.gov.Execute(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "execute failed",
			slog.Uint64("proposal_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

type setTargetRequest struct {
	Caller string `json:"caller"`
	Target string `json:"target"`
}

// SetMarketTarget points command dispatch at a new pool service identity.
// PUT /api/governance/market-target
func (h *GovernanceHandler) SetMarketTarget(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req setTargetRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	target, err := parseAddress(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := signedCaller(r, body, req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ev, err := h.gov.SetMarketTarget(r.Context(), caller, target)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type setOwnerRequest struct {
	Caller string `json:"caller"`
	Owner  string `json:"owner"`
}

// SetOwner hands governance ownership to a new identity.
// PUT /api/governance/owner
func (h *GovernanceHandler) SetOwner(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req setOwnerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	newOwner, err := parseAddress(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := signedCaller(r, body, req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ev, err := h.gov.SetOwner(r.Context(), caller, newOwner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}
