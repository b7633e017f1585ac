package handlers

import (
	"net/http"
	"strconv"
)

const (
	defaultSummaryDays = 7
	maxSummaryDays     = 90
)

// StatsSummary aggregates the daily usage counters over the requested window
// (?days=N, default 7).
func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	days := defaultSummaryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "days must be a positive integer")
			return
		}
		days = n
	}
	if days > maxSummaryDays {
		days = maxSummaryDays
	}
	summary, err := a.Stats.Summary(r.Context(), days)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"days": days, "counters": summary})
}
