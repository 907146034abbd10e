package api

import (
	"errors"
	"net/http"

	"github.com/example/jennys-storefront/internal/api/middleware"
	"github.com/example/jennys-storefront/internal/checkout"
	"github.com/example/jennys-storefront/internal/domain/cart"
	"github.com/example/jennys-storefront/internal/domain/order"
	"github.com/example/jennys-storefront/internal/payment"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type checkoutRequest struct {
	Contact struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"contact"`
	Address       order.Address `json:"address"`
	PaymentMethod string        `json:"payment_method"`
	// SourceID is the single-use token from the processor's browser SDK.
	SourceID string `json:"source_id"`
}

type checkoutResponse struct {
	OrderID    string          `json:"order_id"`
	Status     order.Status    `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Message    string          `json:"message"`
}

type checkoutErrorResponse struct {
	Error   string          `json:"error"`
	Missing []string        `json:"missing,omitempty"`
	State   *checkout.State `json:"state,omitempty"`
}

func (h *Handlers) ShippingQuote(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if country == "" {
		respondError(w, "country is required", http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, h.shipping.Quote(country))
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	form := checkout.Form{Address: req.Address}
	if req.PaymentMethod != "" {
		method, err := payment.ParseMethod(req.PaymentMethod)
		if err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		form.Method = method
	}
	claims, authenticated := middleware.GetUserFromContext(r.Context())
	if authenticated || req.Contact.Name != "" || req.Contact.Email != "" || req.Contact.Phone != "" {
		form.Contact = checkout.Contact{
			Name:  req.Contact.Name,
			Email: req.Contact.Email,
			Phone: req.Contact.Phone,
		}
		if authenticated {
			form.Contact.UserID = claims.UserID
		}
	}

	sessionID := middleware.GetSessionID(r.Context())
	placed, err := h.checkout.Checkout(r.Context(), sessionID, form, req.SourceID)
	if err != nil {
		h.checkoutError(w, r, sessionID, err)
		return
	}

	respondJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:    placed.ID,
		Status:     placed.Status,
		TotalPrice: placed.TotalPrice,
		Message:    checkout.MessageOrderPlaced,
	})
}

func (h *Handlers) CheckoutStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := h.checkout.Status(middleware.GetSessionID(r.Context()))
	if !ok {
		respondError(w, "no checkout in progress", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// checkoutError maps a failed attempt to a status code. The body carries the
// session's user-facing message when there is one.
func (h *Handlers) checkoutError(w http.ResponseWriter, r *http.Request, sessionID string, err error) {
	body := checkoutErrorResponse{Error: err.Error()}
	if status, ok := h.checkout.Status(sessionID); ok {
		if status.Message != "" {
			body.Error = status.Message
		}
		body.State = &status.State
	}

	var (
		validation *checkout.ValidationError
		declined   *payment.DeclinedError
		captured   *checkout.CapturedWithoutOrderError
	)
	code := http.StatusBadGateway
	switch {
	case errors.As(err, &validation):
		body.Missing = validation.Missing
		code = http.StatusBadRequest
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, cart.ErrInvalidSession),
		errors.Is(err, payment.ErrTokenization),
		errors.Is(err, payment.ErrInvalidMethod),
		errors.Is(err, payment.ErrCaptureRejected):
		code = http.StatusBadRequest
	case errors.As(err, &declined):
		code = http.StatusPaymentRequired
	case errors.Is(err, checkout.ErrSubmitInFlight), errors.Is(err, checkout.ErrAlreadyCompleted):
		code = http.StatusConflict
	case errors.As(err, &captured):
		code = http.StatusInternalServerError
	}

	if code >= http.StatusInternalServerError {
		h.logger.Warn("checkout failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	respondJSON(w, code, body)
}
