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

type productRequest struct {
	Name         string  `json:"name"`
	ReferenceURL string  `json:"reference_url"`
	Notes        *string `json:"notes"`
}

// ProductsCreate registers a reference image under a product name. A blank
// name is derived from the reference URL.
func (a *App) ProductsCreate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if !domain.ValidReferenceURL(req.ReferenceURL) {
		a.error(w, http.StatusBadRequest, "reference_required", "reference_url must be an absolute http(s) url")
		return
	}
	product := &domain.Product{
		ID:           uuid.NewString(),
		Name:         domain.DeriveProductName(req.Name, req.ReferenceURL),
		ReferenceURL: strings.TrimSpace(req.ReferenceURL),
	}
	if req.Notes != nil {
		product.Notes = strings.TrimSpace(*req.Notes)
	}
	if err := a.Products.Create(r.Context(), product); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to create product")
		return
	}
	a.json(w, http.StatusCreated, productPayload(product))
}

func (a *App) ProductsList(w http.ResponseWriter, r *http.Request) {
	products, err := a.Products.List(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list products")
		return
	}
	items := make([]map[string]any, 0, len(products))
	for i := range products {
		items = append(items, productPayload(&products[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) ProductGet(w http.ResponseWriter, r *http.Request) {
	product, ok := a.lookupProduct(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, productPayload(product))
}

// ProductUpdate rewrites the product's mutable fields. Omitted fields keep
// their current value.
func (a *App) ProductUpdate(w http.ResponseWriter, r *http.Request) {
	product, ok := a.lookupProduct(w, r)
	if !ok {
		return
	}
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.ReferenceURL != "" {
		if !domain.ValidReferenceURL(req.ReferenceURL) {
			a.error(w, http.StatusBadRequest, "reference_required", "reference_url must be an absolute http(s) url")
			return
		}
		product.ReferenceURL = strings.TrimSpace(req.ReferenceURL)
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		product.Name = name
	}
	if req.Notes != nil {
		product.Notes = strings.TrimSpace(*req.Notes)
	}
	if err := a.Products.Update(r.Context(), product); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to update product")
		return
	}
	a.json(w, http.StatusOK, productPayload(product))
}

func (a *App) ProductDelete(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	if err := a.Products.Delete(r.Context(), productID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete product")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"id": productID, "status": "deleted"})
}

func (a *App) lookupProduct(w http.ResponseWriter, r *http.Request) (*domain.Product, bool) {
	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "product_id required")
		return nil, false
	}
	product, err := a.Products.GetByID(r.Context(), productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "product not found")
			return nil, false
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load product")
		return nil, false
	}
	return product, true
}

func productPayload(p *domain.Product) map[string]any {
	return map[string]any{
		"id":            p.ID,
		"name":          p.Name,
		"reference_url": p.ReferenceURL,
		"notes":         p.Notes,
		"created_at":    p.CreatedAt,
		"updated_at":    p.UpdatedAt,
	}
}
