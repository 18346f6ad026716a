package handler

import (
	"log/slog"
	"net/http"

	"bolao/internal/domain"
)

// EventsHandler serves the event journal.
type EventsHandler struct {
	journal domain.EventJournal
	logger  *slog.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(journal domain.EventJournal, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		journal: journal,
		logger:  logHandler(logger, "events"),
	}
}

// ListEvents returns journaled events, newest first, with pagination and
// optional since/until time filters.
// GET /api/events?limit=50&offset=0&since=...&until=...
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	events, err := h.journal.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list events failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}
