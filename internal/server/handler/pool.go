package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bolao/internal/domain"
)

// PoolService defines what the pool handler requires from the service layer.
// It is declared locally so the handler package does not depend on the
// concrete service implementation.
type PoolService interface {
	RegisterPhase(ctx context.Context, caller common.Address, name string, start, end time.Time) (domain.Event, error)
	RegisterMatch(ctx context.Context, caller common.Address, phase, home, away string, kickOff time.Time) (domain.Event, error)
	PlaceBet(ctx context.Context, caller common.Address, matchID uint64, selected domain.Outcome, gross uint64) (domain.Event, error)
	ProposeResult(ctx context.Context, caller common.Address, matchID uint64, outcome domain.Outcome) (domain.Event, error)
	FinalizeResult(ctx context.Context, caller common.Address, matchID uint64) (domain.Event, error)
	PayoutWinners(ctx context.Context, matchID uint64) ([]domain.Event, error)
	SendFinalPrize(ctx context.Context) (domain.Event, error)
	WithdrawFees(ctx context.Context) (domain.Event, error)

	Match(matchID uint64) (domain.MatchInfo, error)
	MatchesByPhase(phase string) []domain.MatchInfo
	Bet(user common.Address, matchID uint64) (domain.Bet, error)
	UserPoints(user common.Address) uint32
	Snapshot() domain.PoolSnapshot
}

// PoolHandler serves the betting pool HTTP endpoints.
type PoolHandler struct {
	pool   PoolService
	logger *slog.Logger
}

// NewPoolHandler creates a PoolHandler.
func NewPoolHandler(pool PoolService, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{
		pool:   pool,
		logger: logHandler(logger, "pool"),
	}
}

// GetSnapshot returns the full pool state.
// GET /api/pool
func (h *PoolHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pool.Snapshot())
}

type registerPhaseRequest struct {
	Caller    string    `json:"caller"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// RegisterPhase inserts a new tournament phase.
// POST /api/pool/phases
func (h *PoolHandler) RegisterPhase(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req registerPhaseRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing phase name")
		return
	}
	caller, err := signedCaller(r, body, req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ev, err := h.pool.RegisterPhase(r.Context(), caller, req.Name, req.StartTime, req.EndTime)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// ListMatches returns the matches registered under a phase.
// GET /api/pool/phases/{name}/matches
func (h *PoolHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	phase := r.PathValue("name")
	if phase == "" {
		writeError(w, http.StatusBadRequest, "missing phase name")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"phase":   phase,
		"matches": h.pool.MatchesByPhase(phase),
	})
}

type registerMatchRequest struct {
	Caller  string    `json:"caller"`
	Phase   string    `json:"phase"`
	Home    string    `json:"home"`
	Away    string    `json:"away"`
	KickOff time.Time `json:"kick_off"`
}

// RegisterMatch allocates the next match id under an existing phase.
// POST /api/pool/matches
func (h *PoolHandler) RegisterMatch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req registerMatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	caller, err := signedCaller(r, body, req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ev, err := h.pool.RegisterMatch(r.Context(), caller, req.Phase, req.Home, req.Away, req.KickOff)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// GetMatch returns a single match.
// GET /api/pool/matches/{id}
func (h *PoolHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	info, err := h.pool.Match(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type placeBetRequest struct {
	Caller   string `json:"caller"`
	Selected string `json:"selected"`
	Gross    uint64 `json:"gross"`
}

// PlaceBet accepts a wager on a match outcome.
// POST /api/pool/matches/{id}/bets
func (h *PoolHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
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
	var req placeBetRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	selected, err := domain.ParseOutcome(req.Selected)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Gross == 0 {
		writeError(w, http.StatusBadRequest, "gross amount must be positive")
		return
	}
	caller, err := signedCaller(r, body, req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ev, err := h.pool.PlaceBet(r.Context(), caller, id, selected, req.Gross)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// GetBet returns the bet a user holds on a match.
// GET /api/pool/matches/{id}/bets/{user}
func (h *PoolHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := parseAddress(r.PathValue("user"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bet, err := h.pool.Bet(user, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

type proposeResultRequest struct {
	Caller  string `json:"caller"`
	Outcome string `json:"outcome"`
}

// ProposeResult records an oracle's claimed outcome for a match.
// POST /api/pool/matches/{id}/result/propose
func (h *PoolHandler) ProposeResult(w http.ResponseWriter, r *http.Request) {
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
	var req proposeResultRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	outcome, err := domain.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := signedCaller(r, body, req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ev, err := h.pool.ProposeResult(r.Context(), caller, id, outcome)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type finalizeResultRequest struct {
	Caller string `json:"caller"`
}

// FinalizeResult promotes a proposed outcome to final.
// POST /api/pool/matches/{id}/result/finalize
func (h *PoolHandler) FinalizeResult(w http.ResponseWriter, r *http.Request) {
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
	var req finalizeResultRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	caller, err := signedCaller(r, body, req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ev, err := h.pool.FinalizeResult(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// PayoutWinners settles one chunk of winning shares for a finalized match.
// Safe to call repeatedly; an empty list means nothing more fits this chunk.
// POST /api/pool/matches/{id}/payouts
func (h *PoolHandler) PayoutWinners(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.pool.PayoutWinners(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "payout failed",
			slog.Uint64("match_id", id),
			slog.String("error", err.Error()),
		)
		// Partial progress is still reported alongside the error status.
		writeJSON(w, errStatus(err), map[string]any{
			"error":  err.Error(),
			"events": events,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// SendFinalPrize transfers the accumulated final-prize fund to the prize
// distributor.
// POST /api/pool/final-prize
func (h *PoolHandler) SendFinalPrize(w http.ResponseWriter, r *http.Request) {
	ev, err := h.pool.SendFinalPrize(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// WithdrawFees transfers the accumulated operator fees to the owner.
// POST /api/pool/fees/withdraw
func (h *PoolHandler) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	ev, err := h.pool.WithdrawFees(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// GetUserPoints returns a user's lifetime point total.
// GET /api/pool/points/{user}
func (h *PoolHandler) GetUserPoints(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress(r.PathValue("user"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   user.Hex(),
		"points": h.pool.UserPoints(user),
	})
}
