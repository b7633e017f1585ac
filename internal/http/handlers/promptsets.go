package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/caabsu/outlight-img2img/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type promptSetRequest struct {
	Name    string   `json:"name"`
	Prompts []string `json:"prompts"`
}

// PromptSetsCreate saves a named prompt list under a product so it can be
// resubmitted as a run batch later.
func (a *App) PromptSetsCreate(w http.ResponseWriter, r *http.Request) {
	product, ok := a.lookupProduct(w, r)
	if !ok {
		return
	}
	var req promptSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "name required")
		return
	}
	prompts := make([]string, 0, len(req.Prompts))
	for _, prompt := range req.Prompts {
		trimmed := strings.TrimSpace(prompt)
		if trimmed == "" {
			a.error(w, http.StatusBadRequest, "blank_prompt", "prompts must not be blank")
			return
		}
		prompts = append(prompts, trimmed)
	}
	if len(prompts) == 0 {
		a.error(w, http.StatusBadRequest, "empty_batch", "prompts required")
		return
	}
	set := &domain.PromptSet{
		ID:        uuid.NewString(),
		ProductID: product.ID,
		Name:      name,
		Prompts:   prompts,
	}
	if err := a.PromptSets.Create(r.Context(), set); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to create prompt set")
		return
	}
	a.json(w, http.StatusCreated, promptSetPayload(set))
}

func (a *App) PromptSetsList(w http.ResponseWriter, r *http.Request) {
	product, ok := a.lookupProduct(w, r)
	if !ok {
		return
	}
	sets, err := a.PromptSets.ListByProduct(r.Context(), product.ID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list prompt sets")
		return
	}
	items := make([]map[string]any, 0, len(sets))
	for i := range sets {
		items = append(items, promptSetPayload(&sets[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) PromptSetGet(w http.ResponseWriter, r *http.Request) {
	setID := chi.URLParam(r, "set_id")
	if setID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "set_id required")
		return
	}
	set, err := a.PromptSets.GetByID(r.Context(), setID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "prompt set not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load prompt set")
		return
	}
	a.json(w, http.StatusOK, promptSetPayload(set))
}

func (a *App) PromptSetDelete(w http.ResponseWriter, r *http.Request) {
	setID := chi.URLParam(r, "set_id")
	if err := a.PromptSets.Delete(r.Context(), setID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "prompt set not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete prompt set")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"id": setID, "status": "deleted"})
}

func promptSetPayload(set *domain.PromptSet) map[string]any {
	return map[string]any{
		"id":         set.ID,
		"product_id": set.ProductID,
		"name":       set.Name,
		"prompts":    set.Prompts,
		"created_at": set.CreatedAt,
	}
}
