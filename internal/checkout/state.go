package checkout

import (
	"errors"
	"fmt"
	"strings"
)

// State is the position of a checkout session in the payment flow.
type State int

const (
	StateCollectingInfo State = iota
	StateAwaitingPaymentWidgetReady
	StateAwaitingTokenization
	StateCapturingPayment
	StateCreatingOrder
	StateSucceeded
	// StateErrored is entered from the attempt states and also from
	// StateAwaitingPaymentWidgetReady when the widget fails to load.
	StateErrored
)

var stateNames = map[State]string{
	StateCollectingInfo:             "collecting_info",
	StateAwaitingPaymentWidgetReady: "awaiting_payment_widget_ready",
	StateAwaitingTokenization:       "awaiting_tokenization",
	StateCapturingPayment:           "capturing_payment",
	StateCreatingOrder:              "creating_order",
	StateSucceeded:                  "succeeded",
	StateErrored:                    "errored",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrSubmitInFlight   = errors.New("a checkout request is already in progress")
	ErrAlreadyCompleted = errors.New("checkout already completed")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrWidgetFailed     = errors.New("payment form could not be loaded")
)

// ValidationError lists the required fields that are still empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// CapturedWithoutOrderError means the customer was charged but the order
// could not be recorded. It carries what an operator needs to reconcile the
// payment by hand.
type CapturedWithoutOrderError struct {
	PaymentID   string
	Reference   string
	AmountMinor int64
	Currency    string
	Err         error
}

func (e *CapturedWithoutOrderError) Error() string {
	return fmt.Sprintf("payment %s captured (%d %s) but order was not recorded: %v",
		e.PaymentID, e.AmountMinor, e.Currency, e.Err)
}

func (e *CapturedWithoutOrderError) Unwrap() error { return e.Err }
