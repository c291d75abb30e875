package statusapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /v1/stats", handler.GetStats)
}

func registerSessionRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /v1/session", handler.ConfigureSession)
	mux.HandleFunc("POST /v1/pool", handler.RegisterPool)
}

func registerDraftRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/draft/state", handler.GetDraftState)
	mux.HandleFunc("GET /v1/draft/picks", handler.ListPicks)
	mux.HandleFunc("GET /v1/draft/roster", handler.GetRoster)
	mux.HandleFunc("GET /v1/draft/available", handler.ListAvailablePlayers)
	mux.HandleFunc("GET /v1/draft/validation", handler.GetValidation)
	mux.HandleFunc("GET /v1/draft/snapshots", handler.ListSnapshots)
	mux.HandleFunc("GET /v1/draft/frames", handler.ListFrames)
	mux.HandleFunc("GET /v1/players/search", handler.SearchPlayers)
}

func registerOpsRoutes(mux *http.ServeMux, handler *Handler, opsToken string) {
	mux.Handle("POST /v1/draft/rollback", RequireOpsToken(opsToken, http.HandlerFunc(handler.RollbackSnapshot)))
	mux.Handle("POST /v1/draft/heal", RequireOpsToken(opsToken, http.HandlerFunc(handler.HealDraft)))
}
