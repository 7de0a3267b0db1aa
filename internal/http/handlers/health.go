package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// Health reports the gateway as up and includes the remote API's view of
// itself. A failing remote degrades the status without failing the probe.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := map[string]any{"status": "ok"}
	remote, err := a.API.Health(ctx)
	if err != nil {
		a.log().Warn().Err(err).Msg("remote health check failed")
		resp["status"] = "degraded"
		resp["remote"] = map[string]any{"status": "unreachable"}
	} else {
		resp["remote"] = remote
	}
	if a.Studios != nil {
		resp["studio_sessions"] = a.Studios.Len()
	}
	a.json(w, http.StatusOK, resp)
}

func (a *App) Models(w http.ResponseWriter, r *http.Request) {
	models, err := a.API.ListModels(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, models)
}

// Explore lists public generations, paged by last_key.
func (a *App) Explore(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	page, err := a.API.ListPublicGenerations(r.Context(), limit, r.URL.Query().Get("last_key"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, pageResponse(page))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > 100 {
		return 100
	}
	return n
}
