package api

import (
	"errors"
	"net/http"

	"github.com/example/jennys-storefront/internal/api/middleware"
	"github.com/example/jennys-storefront/internal/domain/cart"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type cartResponse struct {
	SessionID   string          `json:"session_id"`
	Items       []cart.Item     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalItems  int             `json:"total_items"`
}

func (h *Handlers) openCart(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	st, err := h.carts.Open(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		if errors.Is(err, cart.ErrInvalidSession) {
			respondError(w, err.Error(), http.StatusBadRequest)
			return nil, false
		}
		h.internalError(w, r, "failed to open cart", err)
		return nil, false
	}
	return st, true
}

func (h *Handlers) respondCart(w http.ResponseWriter, r *http.Request, st *cart.Store) {
	respondJSON(w, http.StatusOK, cartResponse{
		SessionID:   middleware.GetSessionID(r.Context()),
		Items:       st.Items(),
		TotalAmount: st.TotalAmount(),
		TotalItems:  st.TotalItems(),
	})
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openCart(w, r)
	if !ok {
		return
	}
	h.respondCart(w, r, st)
}

// AddToCart prices the line from the catalog; clients only send the product
// and quantity.
func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	p, found, err := h.readStore.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		h.internalError(w, r, "failed to load product", err)
		return
	}
	if !found {
		respondError(w, "product not found", http.StatusNotFound)
		return
	}

	st, ok := h.openCart(w, r)
	if !ok {
		return
	}
	err = st.Add(r.Context(), cart.Item{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  req.Quantity,
		ImageURL:  p.ImageURL,
	})
	if err != nil {
		h.cartError(w, r, err)
		return
	}
	h.respondCart(w, r, st)
}

func (h *Handlers) IncreaseCartItem(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, func(st *cart.Store) error {
		return st.Increase(r.Context(), chi.URLParam(r, "productID"))
	})
}

func (h *Handlers) DecreaseCartItem(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, func(st *cart.Store) error {
		return st.Decrease(r.Context(), chi.URLParam(r, "productID"))
	})
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, func(st *cart.Store) error {
		return st.Remove(r.Context(), chi.URLParam(r, "productID"))
	})
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, func(st *cart.Store) error {
		return st.Clear(r.Context())
	})
}

func (h *Handlers) mutateCart(w http.ResponseWriter, r *http.Request, fn func(st *cart.Store) error) {
	st, ok := h.openCart(w, r)
	if !ok {
		return
	}
	if err := fn(st); err != nil {
		h.cartError(w, r, err)
		return
	}
	h.respondCart(w, r, st)
}

func (h *Handlers) cartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrItemNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrInvalidProduct):
		respondError(w, err.Error(), http.StatusBadRequest)
	default:
		h.internalError(w, r, "failed to update cart", err)
	}
}
