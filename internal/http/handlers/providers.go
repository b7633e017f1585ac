package handlers

import "net/http"

// ProvidersList reports the registered provider names and the fallback used
// when a run names none.
func (a *App) ProvidersList(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"items":   a.Providers.Names(),
		"default": a.Providers.Default(),
	})
}
