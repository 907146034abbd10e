// Package checkout drives a customer from a filled-in form to a paid order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/jennys-storefront/internal/domain/cart"
	"github.com/example/jennys-storefront/internal/domain/order"
	"github.com/example/jennys-storefront/internal/domain/shipping"
	"github.com/example/jennys-storefront/internal/notify"
	"github.com/example/jennys-storefront/internal/payment"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	MessageOrderPlaced     = "Order placed"
	MessageDeclined        = "payment declined"
	MessageCardRejected    = "Your card details could not be verified. Please check them and try again."
	MessageWidgetFailed    = "The payment form could not be loaded. Please try again."
	MessageCapturedNoOrder = "Your payment was taken but we could not save your order. Please contact us quoting payment %s."
)

// CartStore is the part of the session's cart the flow reads and clears.
type CartStore interface {
	Items() []cart.Item
	TotalAmount() decimal.Decimal
	Clear(ctx context.Context) error
}

type OrderCreator interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
}

type Notifier interface {
	Show(message string, payload any) notify.Notification
}

type Config struct {
	Currency      string
	ApplicationID string
	LocationID    string
	Shipping      shipping.Policy
	// SessionTTL bounds how long an unfinished checkout is kept.
	SessionTTL time.Duration
}

type Contact struct {
	UserID string
	Name   string
	Email  string
	Phone  string
}

// Status is a read-only view of a session for the UI.
type Status struct {
	State     State           `json:"state"`
	Message   string          `json:"message,omitempty"`
	CanSubmit bool            `json:"can_submit"`
	Total     decimal.Decimal `json:"total"`
	OrderID   string          `json:"order_id,omitempty"`
}

type Deps struct {
	Cart     CartStore
	Widget   payment.Widget
	Capturer payment.Capturer
	Orders   OrderCreator
	Notifier Notifier
	Logger   *zap.Logger
}

// Session is one customer's checkout. Fields can be edited until a payment
// attempt starts; at most one attempt runs at a time.
type Session struct {
	deps Deps
	cfg  Config
	now  func() time.Time

	mu          sync.Mutex
	state       State
	message     string
	userID      string
	address     order.Address
	method      payment.Method
	widget      payment.Widget
	widgetReady bool
	inFlight    bool
	placed      *order.Order
}

func NewSession(deps Deps, cfg Config) *Session {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Session{
		deps:   deps,
		cfg:    cfg,
		now:    time.Now,
		state:  StateCollectingInfo,
		widget: deps.Widget,
	}
}

// editable must be called with mu held.
func (s *Session) editable() error {
	if s.state == StateSucceeded {
		return ErrAlreadyCompleted
	}
	if s.inFlight {
		return ErrSubmitInFlight
	}
	return nil
}

func (s *Session) SetContact(c Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	s.userID = c.UserID
	s.address.FullName = c.Name
	s.address.Email = c.Email
	s.address.Phone = c.Phone
	return nil
}

// SetAddress replaces every address field, the contact ones included.
func (s *Session) SetAddress(a order.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	s.address = a
	return nil
}

func (s *Session) SetPaymentMethod(m payment.Method) error {
	method, err := payment.ParseMethod(string(m))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	s.method = method
	return nil
}

// UseWidget swaps in a new payment widget, which must be prepared again.
func (s *Session) UseWidget(w payment.Widget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	s.widget = w
	s.widgetReady = false
	if s.state == StateAwaitingTokenization {
		s.state = StateCollectingInfo
	}
	return nil
}

func (s *Session) missing() []string {
	missing := s.address.Missing()
	if s.method == "" {
		missing = append(missing, "payment_method")
	}
	return missing
}

// IsComplete reports whether every required address field is filled in and
// a payment method is selected.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.missing()) == 0
}

// Total is the cart subtotal plus shipping to the current country.
func (s *Session) Total() decimal.Decimal {
	s.mu.Lock()
	country := s.address.CountryCode
	c := s.deps.Cart
	s.mu.Unlock()
	return c.TotalAmount().Add(s.cfg.Shipping.Fee(country))
}

// useCart points the session at a freshly loaded copy of its cart. It is
// ignored while an attempt is running.
func (s *Session) useCart(c CartStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inFlight {
		s.deps.Cart = c
	}
}

func (s *Session) canSubmit() bool {
	if s.inFlight || !s.widgetReady || len(s.missing()) > 0 {
		return false
	}
	switch s.state {
	case StateAwaitingTokenization, StateCollectingInfo, StateErrored:
		return true
	}
	return false
}

func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmit()
}

func (s *Session) Status() Status {
	total := s.Total()
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:     s.state,
		Message:   s.message,
		CanSubmit: s.canSubmit(),
		Total:     total,
	}
	if s.placed != nil {
		st.OrderID = s.placed.ID
	}
	return st
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// fail ends an attempt. The form is editable again afterwards.
func (s *Session) fail(state State, message string, err error) error {
	s.mu.Lock()
	s.state = state
	s.message = message
	s.inFlight = false
	s.mu.Unlock()
	return err
}

// Prepare initialises the payment widget and waits until it can tokenize.
// It is a no-op once the widget is ready.
func (s *Session) Prepare(ctx context.Context) error {
	s.mu.Lock()
	if err := s.editable(); err != nil {
		s.mu.Unlock()
		return err
	}
	if missing := s.missing(); len(missing) > 0 {
		s.mu.Unlock()
		return &ValidationError{Missing: missing}
	}
	if s.widgetReady {
		s.mu.Unlock()
		return nil
	}
	if s.widget == nil {
		s.mu.Unlock()
		return payment.ErrWidgetNotReady
	}
	widget := s.widget
	cfg := payment.WidgetConfig{
		ApplicationID: s.cfg.ApplicationID,
		LocationID:    s.cfg.LocationID,
		Method:        s.method,
	}
	s.state = StateAwaitingPaymentWidgetReady
	s.message = ""
	s.mu.Unlock()

	if err := widget.Init(ctx, cfg); err != nil {
		s.deps.Logger.Warn("payment widget init failed", zap.Error(err))
		return s.fail(StateErrored, MessageWidgetFailed, fmt.Errorf("%w: %w", ErrWidgetFailed, err))
	}

	select {
	case <-widget.Ready():
	case <-ctx.Done():
		return s.fail(StateErrored, MessageWidgetFailed, fmt.Errorf("%w: %w", ErrWidgetFailed, ctx.Err()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.widget != widget {
		// replaced while we waited; the new widget needs its own Prepare
		s.state = StateCollectingInfo
		return payment.ErrWidgetNotReady
	}
	s.widgetReady = true
	s.state = StateAwaitingTokenization
	return nil
}

// attempt is what a single Submit charges and records.
type attempt struct {
	items     []cart.Item
	total     decimal.Decimal
	address   order.Address
	method    payment.Method
	userID    string
	widget    payment.Widget
	cartStore CartStore
}

func (s *Session) begin() (*attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return nil, err
	}
	if missing := s.missing(); len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}
	if !s.widgetReady {
		return nil, payment.ErrWidgetNotReady
	}

	items := s.deps.Cart.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	s.inFlight = true
	s.state = StateAwaitingTokenization
	s.message = ""
	return &attempt{
		items:     items,
		total:     subtotal.Add(s.cfg.Shipping.Fee(s.address.CountryCode)),
		address:   s.address,
		method:    s.method,
		userID:    s.userID,
		widget:    s.widget,
		cartStore: s.deps.Cart,
	}, nil
}

// Submit tokenizes the card, captures the total and records the order. The
// cart is cleared only after the order exists.
func (s *Session) Submit(ctx context.Context) (*order.Order, error) {
	a, err := s.begin()
	if err != nil {
		return nil, err
	}
	log := s.deps.Logger.With(zap.String("customer_email", a.address.Email))

	token, err := a.widget.Tokenize(ctx)
	if errors.Is(err, payment.ErrTokenization) {
		log.Info("card tokenization rejected", zap.Error(err))
		return nil, s.fail(StateCollectingInfo, MessageCardRejected, err)
	}
	if err != nil {
		log.Warn("payment widget failed", zap.Error(err))
		return nil, s.fail(StateErrored, err.Error(), fmt.Errorf("tokenization failed: %w", err))
	}

	s.setState(StateCapturingPayment)
	req := payment.CaptureRequest{
		AmountMinor:   a.total.Shift(2).Round(0).IntPart(),
		Currency:      s.cfg.Currency,
		Token:         token,
		Method:        a.method,
		Reference:     payment.NewReference(s.now()),
		CustomerEmail: a.address.Email,
		CustomerName:  a.address.FullName,
	}
	log = log.With(zap.String("reference", req.Reference), zap.Int64("amount_minor", req.AmountMinor))

	result, err := s.deps.Capturer.Capture(ctx, req)
	if err != nil {
		log.Warn("payment capture failed", zap.Error(err))
		return nil, s.fail(StateErrored, err.Error(), fmt.Errorf("capture failed: %w", err))
	}
	if result == nil || result.ID == "" || !result.Approved {
		declined := &payment.DeclinedError{}
		if result != nil {
			declined.PaymentID = result.ID
			declined.Reason = result.Status
		}
		log.Info("payment declined", zap.String("payment_id", declined.PaymentID))
		return nil, s.fail(StateErrored, MessageDeclined, declined)
	}

	s.setState(StateCreatingOrder)
	// Money has moved; a client disconnect must not abort recording it.
	recordCtx := context.WithoutCancel(ctx)

	placed, err := s.deps.Orders.Create(recordCtx, order.CreateRequest{
		UserID:           a.userID,
		Items:            toOrderItems(a.items),
		TotalPrice:       a.total,
		ShippingAddress:  a.address,
		PaymentReference: result.ID,
		PaymentStatus:    "approved",
		CustomerName:     a.address.FullName,
		CustomerEmail:    a.address.Email,
		CustomerPhone:    a.address.Phone,
	})
	if err != nil {
		cwo := &CapturedWithoutOrderError{
			PaymentID:   result.ID,
			Reference:   req.Reference,
			AmountMinor: req.AmountMinor,
			Currency:    req.Currency,
			Err:         err,
		}
		log.Error("payment captured but order not recorded",
			zap.String("payment_id", result.ID),
			zap.String("currency", req.Currency),
			zap.Error(err))
		return nil, s.fail(StateErrored, fmt.Sprintf(MessageCapturedNoOrder, result.ID), cwo)
	}

	if err := a.cartStore.Clear(recordCtx); err != nil {
		log.Warn("failed to clear cart after order", zap.String("order_id", placed.ID), zap.Error(err))
	}

	s.mu.Lock()
	s.state = StateSucceeded
	s.message = MessageOrderPlaced
	s.inFlight = false
	s.placed = placed
	s.mu.Unlock()

	if s.deps.Notifier != nil {
		s.deps.Notifier.Show(MessageOrderPlaced, map[string]string{"order_id": placed.ID})
	}
	log.Info("checkout succeeded", zap.String("order_id", placed.ID), zap.String("payment_id", result.ID))
	return placed, nil
}

func toOrderItems(items []cart.Item) []order.Item {
	out := make([]order.Item, 0, len(items))
	for _, it := range items {
		out = append(out, order.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return out
}
