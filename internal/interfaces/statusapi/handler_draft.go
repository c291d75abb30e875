package statusapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/riskibarqy/draftwire/internal/usecase"
)

func (h *Handler) GetDraftState(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "statusapi.Handler.GetDraftState")
	defer span.End()

	draftState, err := h.queryService.State(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "get draft state failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, draftState)
}

func (h *Handler) ListPicks(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "statusapi.Handler.ListPicks")
	defer span.End()

	picks, err := h.queryService.Picks(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list picks failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, picks)
}

// GetRoster serves one team's roster. team_id omitted means my team,
// which requires a configured session.
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "statusapi.Handler.GetRoster")
	defer span.End()

	teamID, err := queryIntParam(r, "team_id")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	roster, err := h.queryService.Roster(ctx, teamID)
	if err != nil {
		h.logger.WarnContext(ctx, "get roster failed", "team_id", teamID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, roster)
}

func (h *Handler) ListAvailablePlayers(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "statusapi.Handler.ListAvailablePlayers")
	defer span.End()

	limit, err := queryIntParam(r, "limit")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	available, err := h.queryService.Available(ctx, limit)
	if err != nil {
		h.logger.WarnContext(ctx, "list available players failed", "limit", limit, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, available)
}

func (h *Handler) GetValidation(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "statusapi.Handler.GetValidation")
	defer span.End()

	result, err := h.queryService.Validation(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "validation failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "statusapi.Handler.ListSnapshots")
	defer span.End()

	metas, err := h.queryService.Snapshots(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list snapshots failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, metas)
}

// ListFrames tails the archived feed journal so operators can audit
// exactly what the vendor sent, malformed frames included.
func (h *Handler) ListFrames(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "statusapi.Handler.ListFrames")
	defer span.End()

	limit, err := queryIntParam(r, "limit")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	kind := strings.TrimSpace(r.URL.Query().Get("kind"))

	frames, err := h.queryService.Frames(ctx, kind, limit)
	if err != nil {
		h.logger.WarnContext(ctx, "list frames failed", "kind", kind, "limit", limit, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, frames)
}

// queryIntParam reads an optional integer query parameter; absent means
// zero, which the services treat as their default.
func queryIntParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer: %v", usecase.ErrInvalidInput, name, err)
	}
	return parsed, nil
}
