package statusapi

import "net/http"

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "statusapi.Handler.GetStats")
	defer span.End()

	stats, err := h.queryService.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "get stats failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, stats)
}
