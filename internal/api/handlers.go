package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/example/jennys-storefront/internal/analytics"
	"github.com/example/jennys-storefront/internal/api/middleware"
	"github.com/example/jennys-storefront/internal/checkout"
	"github.com/example/jennys-storefront/internal/domain/cart"
	"github.com/example/jennys-storefront/internal/domain/order"
	"github.com/example/jennys-storefront/internal/domain/product"
	"github.com/example/jennys-storefront/internal/domain/shipping"
	"github.com/example/jennys-storefront/internal/infrastructure/store"
	"github.com/example/jennys-storefront/internal/notify"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	products      *product.Service
	orders        *order.Service
	carts         *cart.Service
	checkout      *checkout.Service
	analytics     *analytics.Service
	notifications *notify.Hub
	readStore     store.ReadStoreInterface
	shipping      shipping.Policy
	logger        *zap.Logger
}

type HandlersConfig struct {
	Products      *product.Service
	Orders        *order.Service
	Carts         *cart.Service
	Checkout      *checkout.Service
	Analytics     *analytics.Service
	Notifications *notify.Hub
	ReadStore     store.ReadStoreInterface
	Shipping      shipping.Policy
	Logger        *zap.Logger
}

func NewHandlers(cfg HandlersConfig) *Handlers {
	return &Handlers{
		products:      cfg.Products,
		orders:        cfg.Orders,
		carts:         cfg.Carts,
		checkout:      cfg.Checkout,
		analytics:     cfg.Analytics,
		notifications: cfg.Notifications,
		readStore:     cfg.ReadStore,
		shipping:      cfg.Shipping,
		logger:        cfg.Logger,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ready":  h.readStore.Ready(),
	})
}

// CurrentNotification returns the active notification of the caller's
// session, or 204 when there is none.
func (h *Handlers) CurrentNotification(w http.ResponseWriter, r *http.Request) {
	n, ok := h.notifications.Current(middleware.GetSessionID(r.Context()))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func (h *Handlers) DismissNotification(w http.ResponseWriter, r *http.Request) {
	h.notifications.Dismiss(middleware.GetSessionID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

// internalError logs err and hides it from the client.
func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
	respondError(w, msg, http.StatusInternalServerError)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		respondError(w, msg, http.StatusBadRequest)
		return false
	}
	return true
}
