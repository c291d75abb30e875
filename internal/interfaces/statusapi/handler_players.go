package statusapi

import (
	"net/http"
	"strings"
)

func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "statusapi.Handler.SearchPlayers")
	defer span.End()

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, err := queryIntParam(r, "limit")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	matches, err := h.queryService.SearchPlayers(ctx, query, limit)
	if err != nil {
		h.logger.WarnContext(ctx, "player search failed", "query", query, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, matches)
}
