package statusapi

import (
	"fmt"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/draftwire/internal/usecase"
)

type configureSessionRequest struct {
	LeagueID   string `json:"leagueId" validate:"required"`
	MyTeamID   int    `json:"myTeamId" validate:"required,min=1"`
	TeamCount  int    `json:"teamCount" validate:"required,min=2"`
	Rounds     int    `json:"rounds" validate:"required,min=1"`
	DraftOrder []int  `json:"draftOrder" validate:"omitempty,min=1,dive,min=1"`
}

type registerPoolRequest struct {
	Players []poolPlayerRequest `json:"players" validate:"required,min=1,dive"`
}

type poolPlayerRequest struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name"`
	Position string `json:"position"`
	ProTeam  string `json:"proTeam"`
}

func (h *Handler) ConfigureSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "statusapi.Handler.ConfigureSession")
	defer span.End()

	var req configureSessionRequest
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

	summary, err := h.sessionService.Configure(ctx, usecase.SessionInput{
		LeagueID:   req.LeagueID,
		MyTeamID:   req.MyTeamID,
		TeamCount:  req.TeamCount,
		Rounds:     req.Rounds,
		DraftOrder: req.DraftOrder,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "configure session failed", "league_id", req.LeagueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, summary)
}

func (h *Handler) RegisterPool(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "statusapi.Handler.RegisterPool")
	defer span.End()

	var req registerPoolRequest
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

	players := make([]usecase.PoolPlayerInput, 0, len(req.Players))
	for _, p := range req.Players {
		players = append(players, usecase.PoolPlayerInput{
			ID:       p.ID,
			Name:     p.Name,
			Position: p.Position,
			ProTeam:  p.ProTeam,
		})
	}

	registration, err := h.sessionService.RegisterPool(ctx, players)
	if err != nil {
		h.logger.WarnContext(ctx, "register pool failed", "submitted", len(req.Players), "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, registration)
}
