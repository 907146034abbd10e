package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/example/jennys-storefront/internal/api/middleware"
	"github.com/example/jennys-storefront/internal/domain/order"
	"github.com/example/jennys-storefront/internal/readmodel"
	"github.com/go-chi/chi/v5"
)

type orderListResponse struct {
	Loading bool                        `json:"loading"`
	Orders  []*readmodel.OrderReadModel `json:"orders"`
}

// ListMyOrders returns the caller's orders, newest first. Orders match on the
// token's email or user id, so guest orders placed with the same email show
// up once the customer signs in.
func (h *Handlers) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.GetUserFromContext(r.Context())
	h.listOrders(w, r, func(o *readmodel.OrderReadModel) bool {
		if claims.Email != "" && strings.EqualFold(strings.TrimSpace(o.CustomerEmail), claims.Email) {
			return true
		}
		return o.UserID != "" && o.UserID == claims.UserID
	})
}

func (h *Handlers) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" {
		if _, err := order.ParseStatus(status); err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	h.listOrders(w, r, func(o *readmodel.OrderReadModel) bool {
		return status == "" || o.Status == status
	})
}

func (h *Handlers) listOrders(w http.ResponseWriter, r *http.Request, keep func(o *readmodel.OrderReadModel) bool) {
	if !h.readStore.Ready() {
		respondJSON(w, http.StatusOK, orderListResponse{Loading: true, Orders: []*readmodel.OrderReadModel{}})
		return
	}
	orders, err := h.readStore.ListOrders(r.Context())
	if err != nil {
		h.internalError(w, r, "failed to list orders", err)
		return
	}

	out := make([]*readmodel.OrderReadModel, 0, len(orders))
	for i := len(orders) - 1; i >= 0; i-- {
		if keep(orders[i]) {
			out = append(out, orders[i])
		}
	}
	respondJSON(w, http.StatusOK, orderListResponse{Orders: out})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.orderError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	target, err := order.ParseStatus(req.Status)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), target, req.Reason)
	if err != nil {
		h.orderError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) orderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrOrderCompleted),
		errors.Is(err, order.ErrOrderCancelled):
		respondError(w, err.Error(), http.StatusConflict)
	default:
		h.internalError(w, r, "failed to update order", err)
	}
}
