package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/caabsu/outlight-img2img/internal/domain"
	"github.com/caabsu/outlight-img2img/internal/events"
	"github.com/caabsu/outlight-img2img/internal/infra"
	"github.com/caabsu/outlight-img2img/internal/providers"
	"github.com/caabsu/outlight-img2img/internal/runs"
)

// App bundles the dependencies shared by every handler.
type App struct {
	Runs       *runs.Registry
	Products   domain.ProductRepository
	PromptSets domain.PromptSetRepository
	Stats      domain.StatsRepository
	Hub        *events.Hub
	Providers  *providers.Registry
	Logger     infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}
