package statusapi

import (
	"fmt"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/draftwire/internal/usecase"
)

type rollbackRequest struct {
	// Index addresses the snapshot ring: -1 is the newest snapshot,
	// 0 the oldest. An absent field is rejected, not defaulted.
	Index *int `json:"index" validate:"required"`
}

func (h *Handler) RollbackSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "statusapi.Handler.RollbackSnapshot")
	defer span.End()

	var req rollbackRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	summary, err := h.opsService.Rollback(ctx, *req.Index)
	if err != nil {
		h.logger.WarnContext(ctx, "rollback failed", "snapshot_index", *req.Index, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, summary)
}

func (h *Handler) HealDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "statusapi.Handler.HealDraft")
	defer span.End()

	report, err := h.opsService.Heal(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "heal failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, report)
}
