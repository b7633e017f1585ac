package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/caabsu/outlight-img2img/internal/domain"
	"github.com/caabsu/outlight-img2img/internal/middleware"
	"github.com/caabsu/outlight-img2img/internal/runs"

	"github.com/go-chi/chi/v5"
)

type runSubmitRequest struct {
	Title        string         `json:"title"`
	ProductID    string         `json:"product_id"`
	PromptSetID  string         `json:"prompt_set_id"`
	ReferenceURL string         `json:"reference_url"`
	Provider     string         `json:"provider"`
	Prompts      []string       `json:"prompts"`
	Options      domain.Options `json:"options"`
	Workers      int            `json:"workers"`
}

// RunsSubmit starts a new generation run. The prompt batch comes inline or
// from a saved prompt set, and the reference image comes inline or from the
// named product.
func (a *App) RunsSubmit(w http.ResponseWriter, r *http.Request) {
	var req runSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.PromptSetID != "" && len(req.Prompts) == 0 {
		set, err := a.PromptSets.GetByID(r.Context(), req.PromptSetID)
		if err != nil {
			a.error(w, http.StatusNotFound, "not_found", "prompt set not found")
			return
		}
		req.Prompts = set.Prompts
		if req.ProductID == "" {
			req.ProductID = set.ProductID
		}
	}
	if req.ProductID != "" {
		product, err := a.Products.GetByID(r.Context(), req.ProductID)
		if err != nil {
			a.error(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		if req.ReferenceURL == "" {
			req.ReferenceURL = product.ReferenceURL
		}
		if req.Title == "" {
			req.Title = product.Name
		}
	}

	view, err := a.Runs.Submit(runs.SubmitParams{
		Title:        req.Title,
		ProductID:    req.ProductID,
		ReferenceURL: req.ReferenceURL,
		Provider:     req.Provider,
		Prompts:      req.Prompts,
		Options:      req.Options,
		Workers:      req.Workers,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyBatch):
			a.error(w, http.StatusBadRequest, "empty_batch", "prompt batch is empty")
		case errors.Is(err, domain.ErrBlankPrompt):
			a.error(w, http.StatusBadRequest, "blank_prompt", "prompt batch contains a blank prompt")
		case errors.Is(err, domain.ErrNoReference):
			a.error(w, http.StatusBadRequest, "reference_required", "no usable reference image url")
		default:
			a.error(w, http.StatusInternalServerError, "internal", "failed to start run")
		}
		return
	}

	a.countSubmit(r)
	a.json(w, http.StatusAccepted, runPayload(view))
}

// countSubmit bumps the daily submit counter, attributed to the caller's
// country when one was resolved.
func (a *App) countSubmit(r *http.Request) {
	if a.Stats == nil {
		return
	}
	counters := map[string]int{"runs_submitted": 1}
	if country := middleware.CountryFromContext(r.Context()); country != "" {
		counters["country_"+strings.ToLower(country)] = 1
	}
	day := time.Now().UTC().Format("2006-01-02")
	if err := a.Stats.IncrementCounters(r.Context(), day, counters); err != nil {
		a.Logger.Warn().Err(err).Msg("handlers: usage counter update failed")
	}
}

func (a *App) RunsList(w http.ResponseWriter, r *http.Request) {
	views, active := a.Runs.List()
	items := make([]map[string]any, 0, len(views))
	for _, view := range views {
		items = append(items, runPayload(view))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items, "active": active})
}

func (a *App) RunGet(w http.ResponseWriter, r *http.Request) {
	view, ok := a.lookupRun(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, runPayload(view))
}

func (a *App) RunDelete(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	if err := a.Runs.Delete(runID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "run not found")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"id": runID, "status": "deleted"})
}

func (a *App) RunCancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	if err := a.Runs.Cancel(runID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "run not found")
		return
	}
	view, err := a.Runs.Get(runID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "run not found")
		return
	}
	a.json(w, http.StatusOK, runPayload(view))
}

func (a *App) RunActivate(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	if err := a.Runs.SetActive(runID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "run not found")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"active": runID})
}

// RunActive returns the run currently selected for display.
func (a *App) RunActive(w http.ResponseWriter, r *http.Request) {
	active := a.Runs.Active()
	if active == "" {
		a.error(w, http.StatusNotFound, "not_found", "no active run")
		return
	}
	view, err := a.Runs.Get(active)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "no active run")
		return
	}
	a.json(w, http.StatusOK, runPayload(view))
}

func (a *App) lookupRun(w http.ResponseWriter, r *http.Request) (domain.RunView, bool) {
	runID := chi.URLParam(r, "run_id")
	if runID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "run_id required")
		return domain.RunView{}, false
	}
	view, err := a.Runs.Get(runID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "run not found")
		return domain.RunView{}, false
	}
	return view, true
}

func runPayload(view domain.RunView) map[string]any {
	outcomes := make([]map[string]any, 0, len(view.Outcomes))
	for _, outcome := range view.Outcomes {
		outcomes = append(outcomes, outcomePayload(outcome))
	}
	payload := map[string]any{
		"id":            view.ID,
		"title":         view.Title,
		"product_id":    view.ProductID,
		"reference_url": view.ReferenceURL,
		"provider":      view.Provider,
		"status":        view.Status,
		"prompts":       view.Prompts,
		"workers":       view.Workers,
		"progress": map[string]int{
			"completed": view.Progress.Completed,
			"total":     view.Progress.Total,
		},
		"outcomes":   outcomes,
		"created_at": view.CreatedAt,
	}
	if len(view.Options) > 0 {
		payload["options"] = view.Options
	}
	if view.LastFailure != nil {
		payload["last_failure"] = outcomePayload(*view.LastFailure)
	}
	if view.ErrorMessage != "" {
		payload["error_message"] = view.ErrorMessage
	}
	return payload
}

func outcomePayload(outcome domain.JobOutcome) map[string]any {
	payload := map[string]any{
		"prompt_index": outcome.PromptIndex,
		"prompt":       outcome.Prompt,
		"state":        outcome.State,
		"finished_at":  outcome.FinishedAt,
	}
	if outcome.ArtifactURL != "" {
		payload["artifact_url"] = outcome.ArtifactURL
	}
	if outcome.Message != "" {
		payload["message"] = outcome.Message
	}
	if len(outcome.Diagnostic) > 0 {
		payload["diagnostic"] = outcome.Diagnostic
	}
	return payload
}
