package api

import (
	"net/http"

	"github.com/example/jennys-storefront/internal/analytics"
)

type customersResponse struct {
	Loading   bool                 `json:"loading"`
	Customers []analytics.Customer `json:"customers"`
}

func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.analytics.Dashboard(r.Context())
	if err != nil {
		h.internalError(w, r, "failed to build dashboard", err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handlers) Customers(w http.ResponseWriter, r *http.Request) {
	customers, loading, err := h.analytics.Customers(r.Context())
	if err != nil {
		h.internalError(w, r, "failed to list customers", err)
		return
	}
	if customers == nil {
		customers = []analytics.Customer{}
	}
	respondJSON(w, http.StatusOK, customersResponse{Loading: loading, Customers: customers})
}
