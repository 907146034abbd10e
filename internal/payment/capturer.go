package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type CapturerConfig struct {
	BaseURL     string
	AccessToken string
	LocationID  string
	Timeout     time.Duration
}

// HTTPCapturer charges tokens through the processor's payments API. Calls go
// through a circuit breaker so an unhealthy processor fails fast. Declines and
// rejected requests do not count as breaker failures.
type HTTPCapturer struct {
	cfg     CapturerConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*CaptureResult]
	logger  *zap.Logger
}

func NewHTTPCapturer(cfg CapturerConfig, client *http.Client, logger *zap.Logger) *HTTPCapturer {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := &HTTPCapturer{cfg: cfg, client: client, logger: logger}
	c.breaker = gobreaker.NewCircuitBreaker[*CaptureResult](gobreaker.Settings{
		Name:        "payment-capture",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var declined *DeclinedError
			return err == nil || errors.As(err, &declined) || errors.Is(err, ErrCaptureRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

type money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type createPaymentRequest struct {
	SourceID          string `json:"source_id"`
	IdempotencyKey    string `json:"idempotency_key"`
	AmountMoney       money  `json:"amount_money"`
	LocationID        string `json:"location_id,omitempty"`
	ReferenceID       string `json:"reference_id"`
	BuyerEmailAddress string `json:"buyer_email_address,omitempty"`
	Note              string `json:"note,omitempty"`
}

type apiError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

type createPaymentResponse struct {
	Payment *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"payment"`
	Errors []apiError `json:"errors"`
}

// approvedStatuses are the payment states that mean money was taken or held.
var approvedStatuses = map[string]bool{"COMPLETED": true, "APPROVED": true}

func (c *HTTPCapturer) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrCaptureRejected)
	}
	if req.Token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrCaptureRejected)
	}

	result, err := c.breaker.Execute(func() (*CaptureResult, error) {
		return c.post(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("payment processor unavailable: %w", err)
	}
	if err != nil {
		var declined *DeclinedError
		if errors.As(err, &declined) {
			return &CaptureResult{ID: declined.PaymentID, Approved: false, Status: "DECLINED"}, nil
		}
		return nil, err
	}
	return result, nil
}

func (c *HTTPCapturer) post(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(createPaymentRequest{
		SourceID:          req.Token,
		IdempotencyKey:    req.Reference,
		AmountMoney:       money{Amount: req.AmountMinor, Currency: strings.ToUpper(req.Currency)},
		LocationID:        c.cfg.LocationID,
		ReferenceID:       req.Reference,
		BuyerEmailAddress: req.CustomerEmail,
		Note:              fmt.Sprintf("%s order for %s", req.Method, req.CustomerName),
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/v2/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	httpReq.Header.Set("Idempotency-Key", req.Reference)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("capture request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read capture response: %w", err)
	}

	var out createPaymentResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("failed to decode capture response (status %d): %w", resp.StatusCode, err)
		}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("payment processor error: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		reason := http.StatusText(resp.StatusCode)
		if len(out.Errors) > 0 {
			reason = out.Errors[0].Code
			if out.Errors[0].Detail != "" {
				reason = out.Errors[0].Detail
			}
		}
		if resp.StatusCode == http.StatusPaymentRequired || hasCategory(out.Errors, "PAYMENT_METHOD_ERROR") {
			id := ""
			if out.Payment != nil {
				id = out.Payment.ID
			}
			return nil, &DeclinedError{PaymentID: id, Reason: reason}
		}
		return nil, fmt.Errorf("%w: %s", ErrCaptureRejected, reason)
	}

	if out.Payment == nil {
		return &CaptureResult{}, nil
	}
	c.logger.Info("payment captured",
		zap.String("payment_id", out.Payment.ID),
		zap.String("status", out.Payment.Status),
		zap.String("reference", req.Reference))
	return &CaptureResult{
		ID:       out.Payment.ID,
		Approved: approvedStatuses[out.Payment.Status],
		Status:   out.Payment.Status,
	}, nil
}

func hasCategory(errs []apiError, category string) bool {
	for _, e := range errs {
		if e.Category == category {
			return true
		}
	}
	return false
}
