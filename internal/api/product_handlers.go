package api

import (
	"errors"
	"net/http"

	"github.com/example/jennys-storefront/internal/domain/product"
	"github.com/example/jennys-storefront/internal/readmodel"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url,omitempty"`
}

func (req productRequest) details() product.Details {
	return product.Details{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
	}
}

type productListResponse struct {
	Loading  bool                          `json:"loading"`
	Products []*readmodel.ProductReadModel `json:"products"`
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	if !h.readStore.Ready() {
		respondJSON(w, http.StatusOK, productListResponse{Loading: true, Products: []*readmodel.ProductReadModel{}})
		return
	}
	products, err := h.readStore.ListProducts(r.Context())
	if err != nil {
		h.internalError(w, r, "failed to list products", err)
		return
	}
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := products[:0]
		for _, p := range products {
			if p.Category == category {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	respondJSON(w, http.StatusOK, productListResponse{Products: products})
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok, err := h.readStore.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.internalError(w, r, "failed to load product", err)
		return
	}
	if !ok {
		respondError(w, product.ErrProductNotFound.Error(), http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.products.Create(r.Context(), req.details(), req.ImageURL)
	if err != nil {
		h.productError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.products.Update(r.Context(), chi.URLParam(r, "productID"), req.details()); err != nil {
		h.productError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "product updated"})
}

func (h *Handlers) UpdateProductImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageURL string `json:"image_url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.products.UpdateImage(r.Context(), chi.URLParam(r, "productID"), req.ImageURL); err != nil {
		h.productError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "product image updated"})
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "productID")); err != nil {
		h.productError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) productError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, product.ErrProductNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, product.ErrInvalidName), errors.Is(err, product.ErrInvalidPrice):
		respondError(w, err.Error(), http.StatusBadRequest)
	default:
		h.internalError(w, r, "failed to save product", err)
	}
}
