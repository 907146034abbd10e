// Package payment talks to the external card processor: a widget that turns
// card details into a single-use token, and a capture API that charges it.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTokenization means the widget rejected the card details. The
	// customer can correct them and submit again.
	ErrTokenization    = errors.New("card details could not be verified")
	ErrWidgetNotReady  = errors.New("payment widget is not ready")
	ErrInvalidMethod   = errors.New("unsupported payment method")
	ErrCaptureRejected = errors.New("capture request rejected")
)

type Method string

const (
	MethodCard      Method = "card"
	MethodGooglePay Method = "google_pay"
	MethodApplePay  Method = "apple_pay"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodCard, MethodGooglePay, MethodApplePay:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
	}
}

type WidgetConfig struct {
	ApplicationID string
	LocationID    string
	Method        Method
}

// Widget is the card-collection component supplied by the processor.
// Ready is closed once the widget can tokenize.
type Widget interface {
	Init(ctx context.Context, cfg WidgetConfig) error
	Ready() <-chan struct{}
	Tokenize(ctx context.Context) (string, error)
}

type CaptureRequest struct {
	AmountMinor   int64
	Currency      string
	Token         string
	Method        Method
	Reference     string
	CustomerEmail string
	CustomerName  string
}

type CaptureResult struct {
	ID       string
	Approved bool
	Status   string
}

type Capturer interface {
	Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
}

// DeclinedError reports a capture the processor refused.
type DeclinedError struct {
	PaymentID string
	Reason    string
}

func (e *DeclinedError) Error() string {
	if e.Reason == "" {
		return "payment declined"
	}
	return "payment declined: " + e.Reason
}

// NewReference returns a fresh capture reference. It doubles as the
// idempotency key, so every attempt must get its own.
func NewReference(now time.Time) string {
	return fmt.Sprintf("jhw-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
