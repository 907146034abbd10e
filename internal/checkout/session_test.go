package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/jennys-storefront/internal/domain/cart"
	"github.com/example/jennys-storefront/internal/domain/order"
	"github.com/example/jennys-storefront/internal/domain/shipping"
	"github.com/example/jennys-storefront/internal/infrastructure/store"
	"github.com/example/jennys-storefront/internal/notify"
	"github.com/example/jennys-storefront/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// ============================================
// Fakes
// ============================================

// callLog records the order collaborators are called in.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(c string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeCart struct {
	mu    sync.Mutex
	items []cart.Item
	log   *callLog
}

func (c *fakeCart) Items() []cart.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]cart.Item{}, c.items...)
}

func (c *fakeCart) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items() {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func (c *fakeCart) Clear(context.Context) error {
	c.log.add("clear")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	return nil
}

type fakeWidget struct {
	initErr     error
	neverReady  bool
	tokenErr    error
	token       string
	ready       chan struct{}
	tokenizeCnt int
	log         *callLog
}

func newFakeWidget(log *callLog) *fakeWidget {
	return &fakeWidget{token: "cnon:ok", ready: make(chan struct{}), log: log}
}

func (w *fakeWidget) Init(context.Context, payment.WidgetConfig) error {
	if w.initErr != nil {
		return w.initErr
	}
	if !w.neverReady {
		close(w.ready)
	}
	return nil
}

func (w *fakeWidget) Ready() <-chan struct{} { return w.ready }

func (w *fakeWidget) Tokenize(context.Context) (string, error) {
	w.tokenizeCnt++
	w.log.add("tokenize")
	if w.tokenErr != nil {
		return "", w.tokenErr
	}
	return w.token, nil
}

type fakeCapturer struct {
	mu       sync.Mutex
	result   *payment.CaptureResult
	err      error
	block    chan struct{}
	entered  chan struct{}
	requests []payment.CaptureRequest
	log      *callLog
}

func (c *fakeCapturer) Capture(_ context.Context, req payment.CaptureRequest) (*payment.CaptureResult, error) {
	c.log.add("capture")
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.entered != nil {
		close(c.entered)
	}
	if c.block != nil {
		<-c.block
	}
	return c.result, c.err
}

type fakeOrders struct {
	mu       sync.Mutex
	err      error
	requests []order.CreateRequest
	log      *callLog
}

func (o *fakeOrders) Create(_ context.Context, req order.CreateRequest) (*order.Order, error) {
	o.log.add("create")
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, req)
	if o.err != nil {
		return nil, o.err
	}
	return &order.Order{ID: "order-1", TotalPrice: req.TotalPrice, Status: order.StatusPending}, nil
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Show(message string, _ any) notify.Notification {
	n.messages = append(n.messages, message)
	return notify.Notification{Message: message}
}

type harness struct {
	session  *Session
	cart     *fakeCart
	widget   *fakeWidget
	capturer *fakeCapturer
	orders   *fakeOrders
	notifier *fakeNotifier
	log      *callLog
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := &callLog{}
	core, logs := observer.New(zap.InfoLevel)
	h := &harness{
		cart: &fakeCart{log: log, items: []cart.Item{
			{ProductID: "wig-1", Name: "Body Wave Wig", UnitPrice: decimal.RequireFromString("20.25"), Quantity: 2},
		}},
		widget:   newFakeWidget(log),
		capturer: &fakeCapturer{log: log, result: &payment.CaptureResult{ID: "pay_1", Approved: true, Status: "COMPLETED"}},
		orders:   &fakeOrders{log: log},
		notifier: &fakeNotifier{},
		log:      log,
		logs:     logs,
	}
	h.session = NewSession(Deps{
		Cart:     h.cart,
		Widget:   h.widget,
		Capturer: h.capturer,
		Orders:   h.orders,
		Notifier: h.notifier,
		Logger:   zap.New(core),
	}, Config{Currency: "GBP", Shipping: shipping.DefaultPolicy})
	return h
}

func completeAddress(country string) order.Address {
	return order.Address{
		FullName:    "Ada Obi",
		Line1:       "1 High Street",
		City:        "London",
		PostalCode:  "E1 6AN",
		CountryCode: country,
		Phone:       "07700900000",
		Email:       "ada@example.com",
	}
}

// ready fills in the form and prepares the widget.
func (h *harness) ready(t *testing.T, country string) {
	t.Helper()
	require.NoError(t, h.session.SetAddress(completeAddress(country)))
	require.NoError(t, h.session.SetPaymentMethod(payment.MethodCard))
	require.NoError(t, h.session.Prepare(context.Background()))
	require.True(t, h.session.CanSubmit())
}

// ============================================
// Form Tests
// ============================================

func TestSession_IsComplete(t *testing.T) {
	h := newHarness(t)

	assert.False(t, h.session.IsComplete())
	require.NoError(t, h.session.SetAddress(completeAddress("GB")))
	assert.False(t, h.session.IsComplete(), "payment method still missing")
	require.NoError(t, h.session.SetPaymentMethod(payment.MethodCard))
	assert.True(t, h.session.IsComplete())

	addr := completeAddress("GB")
	addr.Line2 = ""
	addr.Phone = ""
	require.NoError(t, h.session.SetAddress(addr))
	assert.False(t, h.session.IsComplete())
}

func TestSession_SetContact(t *testing.T) {
	h := newHarness(t)
	addr := completeAddress("GB")
	addr.FullName, addr.Email, addr.Phone = "", "", ""
	require.NoError(t, h.session.SetAddress(addr))
	require.NoError(t, h.session.SetPaymentMethod(payment.MethodCard))
	assert.False(t, h.session.IsComplete())

	require.NoError(t, h.session.SetContact(Contact{Name: "Ada Obi", Email: "ada@example.com", Phone: "0770"}))

	assert.True(t, h.session.IsComplete())
}

func TestSession_SetPaymentMethod_Invalid(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.session.SetPaymentMethod("cheque"), payment.ErrInvalidMethod)
}

func TestSession_TotalFollowsCountry(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "40.50", h.session.Total().StringFixed(2))

	require.NoError(t, h.session.SetAddress(completeAddress("GB")))
	assert.Equal(t, "45.50", h.session.Total().StringFixed(2))

	require.NoError(t, h.session.SetAddress(completeAddress("US")))
	assert.Equal(t, "75.50", h.session.Total().StringFixed(2))
}

// ============================================
// Prepare Tests
// ============================================

func TestSession_Prepare_Incomplete(t *testing.T) {
	h := newHarness(t)
	addr := completeAddress("GB")
	addr.City = ""
	require.NoError(t, h.session.SetAddress(addr))

	err := h.session.Prepare(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"city", "payment_method"}, verr.Missing)
	assert.Equal(t, StateCollectingInfo, h.session.Status().State)
}

func TestSession_Prepare_Ready(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.SetAddress(completeAddress("GB")))
	require.NoError(t, h.session.SetPaymentMethod(payment.MethodCard))
	assert.False(t, h.session.CanSubmit(), "submit disabled until widget is ready")

	require.NoError(t, h.session.Prepare(context.Background()))

	assert.Equal(t, StateAwaitingTokenization, h.session.Status().State)
	assert.True(t, h.session.CanSubmit())
}

func TestSession_Prepare_InitFailure(t *testing.T) {
	h := newHarness(t)
	h.widget.initErr = errors.New("sdk failed to load")
	require.NoError(t, h.session.SetAddress(completeAddress("GB")))
	require.NoError(t, h.session.SetPaymentMethod(payment.MethodCard))

	err := h.session.Prepare(context.Background())

	assert.ErrorIs(t, err, ErrWidgetFailed)
	st := h.session.Status()
	assert.Equal(t, StateErrored, st.State)
	assert.Equal(t, MessageWidgetFailed, st.Message)
}

func TestSession_Prepare_ReadyTimeout(t *testing.T) {
	h := newHarness(t)
	h.widget.neverReady = true
	require.NoError(t, h.session.SetAddress(completeAddress("GB")))
	require.NoError(t, h.session.SetPaymentMethod(payment.MethodCard))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := h.session.Prepare(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateErrored, h.session.Status().State)
	assert.False(t, h.session.CanSubmit())
}

func TestSession_Submit_BeforePrepare(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.SetAddress(completeAddress("GB")))
	require.NoError(t, h.session.SetPaymentMethod(payment.MethodCard))

	_, err := h.session.Submit(context.Background())

	assert.ErrorIs(t, err, payment.ErrWidgetNotReady)
	assert.Empty(t, h.log.list())
}

// ============================================
// Submit Tests
// ============================================

func TestSession_Submit_Success(t *testing.T) {
	h := newHarness(t)
	h.ready(t, "GB")

	placed, err := h.session.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "order-1", placed.ID)
	assert.Equal(t, []string{"tokenize", "capture", "create", "clear"}, h.log.list())

	require.Len(t, h.capturer.requests, 1)
	req := h.capturer.requests[0]
	assert.Equal(t, int64(4550), req.AmountMinor)
	assert.Equal(t, "GBP", req.Currency)
	assert.Equal(t, "cnon:ok", req.Token)
	assert.Equal(t, payment.MethodCard, req.Method)
	assert.Equal(t, "ada@example.com", req.CustomerEmail)
	assert.Equal(t, "Ada Obi", req.CustomerName)
	assert.NotEmpty(t, req.Reference)

	require.Len(t, h.orders.requests, 1)
	created := h.orders.requests[0]
	assert.Equal(t, "45.50", created.TotalPrice.StringFixed(2))
	assert.Equal(t, "pay_1", created.PaymentReference)
	assert.Equal(t, "approved", created.PaymentStatus)
	assert.Equal(t, completeAddress("GB"), created.ShippingAddress)
	require.Len(t, created.Items, 1)
	assert.Equal(t, order.Item{ProductID: "wig-1", Name: "Body Wave Wig", UnitPrice: decimal.RequireFromString("20.25"), Quantity: 2}, created.Items[0])

	assert.Empty(t, h.cart.Items())
	st := h.session.Status()
	assert.Equal(t, StateSucceeded, st.State)
	assert.Equal(t, "order-1", st.OrderID)
	assert.Equal(t, []string{MessageOrderPlaced}, h.notifier.messages)
}

func TestSession_Submit_InternationalTotal(t *testing.T) {
	h := newHarness(t)
	h.ready(t, "US")

	_, err := h.session.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7550), h.capturer.requests[0].AmountMinor)
	assert.Equal(t, "75.50", h.orders.requests[0].TotalPrice.StringFixed(2))
}

func TestSession_Submit_RoundsToMinorUnits(t *testing.T) {
	h := newHarness(t)
	h.cart.items = []cart.Item{{ProductID: "p", UnitPrice: decimal.RequireFromString("10.005"), Quantity: 1}}
	h.ready(t, "GB")

	_, err := h.session.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1501), h.capturer.requests[0].AmountMinor)
}

func TestSession_Submit_EmptyCart(t *testing.T) {
	h := newHarness(t)
	h.ready(t, "GB")
	h.cart.items = nil

	_, err := h.session.Submit(context.Background())

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, h.log.list())
}

func TestSession_Submit_Declined(t *testing.T) {
	tests := []struct {
		name   string
		result *payment.CaptureResult
	}{
		{"not approved", &payment.CaptureResult{ID: "pay_2", Approved: false}},
		{"no id", &payment.CaptureResult{Approved: true}},
		{"nil result", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.capturer.result = tt.result
			h.ready(t, "GB")

			placed, err := h.session.Submit(context.Background())

			var declined *payment.DeclinedError
			require.ErrorAs(t, err, &declined)
			assert.Nil(t, placed)
			assert.Empty(t, h.orders.requests)
			assert.Len(t, h.cart.Items(), 1)
			st := h.session.Status()
			assert.Equal(t, StateErrored, st.State)
			assert.Equal(t, MessageDeclined, st.Message)
			assert.True(t, st.CanSubmit)
		})
	}
}

func TestSession_Submit_CaptureError(t *testing.T) {
	h := newHarness(t)
	h.capturer.err = errors.New("connection reset")
	h.capturer.result = nil
	h.ready(t, "GB")

	_, err := h.session.Submit(context.Background())

	assert.ErrorContains(t, err, "connection reset")
	assert.Empty(t, h.orders.requests)
	assert.Len(t, h.cart.Items(), 1)
	assert.Equal(t, "connection reset", h.session.Status().Message)
	assert.True(t, h.session.CanSubmit())
}

func TestSession_Submit_OrderCreationFails(t *testing.T) {
	h := newHarness(t)
	h.orders.err = errors.New("event store unavailable")
	h.ready(t, "GB")

	_, err := h.session.Submit(context.Background())

	var cwo *CapturedWithoutOrderError
	require.ErrorAs(t, err, &cwo)
	assert.Equal(t, "pay_1", cwo.PaymentID)
	assert.Equal(t, int64(4550), cwo.AmountMinor)
	assert.Equal(t, "GBP", cwo.Currency)
	assert.ErrorContains(t, err, "event store unavailable")

	assert.Equal(t, []string{"tokenize", "capture", "create"}, h.log.list())
	assert.Len(t, h.cart.Items(), 1, "cart must not be cleared")
	st := h.session.Status()
	assert.Equal(t, StateErrored, st.State)
	assert.Contains(t, st.Message, "pay_1")
	assert.True(t, st.CanSubmit)
	assert.Empty(t, h.notifier.messages)

	errs := h.logs.FilterLevelExact(zap.ErrorLevel).All()
	require.Len(t, errs, 1)
	assert.Equal(t, "payment captured but order not recorded", errs[0].Message)
}

type downPublisher struct{}

func (downPublisher) Publish(context.Context, string, any) error { return errors.New("kafka down") }

func TestSession_Submit_OrderRecordedWhenBusIsDown(t *testing.T) {
	h := newHarness(t)
	eventStore := store.NewEventStore(downPublisher{}, zap.NewNop())
	h.session.deps.Orders = order.NewService(eventStore, zap.NewNop())
	h.ready(t, "GB")

	placed, err := h.session.Submit(context.Background())

	require.NoError(t, err)
	require.NotNil(t, placed)
	assert.Empty(t, h.cart.Items())
	assert.Equal(t, StateSucceeded, h.session.Status().State)
	assert.False(t, h.session.CanSubmit())
	events, err := eventStore.GetAllEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, order.EventOrderPlaced, events[0].EventType)
	assert.Equal(t, placed.ID, events[0].AggregateID)
}

func TestSession_Submit_TokenizationRejected(t *testing.T) {
	h := newHarness(t)
	h.widget.tokenErr = payment.ErrTokenization
	h.ready(t, "GB")

	_, err := h.session.Submit(context.Background())

	assert.ErrorIs(t, err, payment.ErrTokenization)
	assert.Empty(t, h.capturer.requests)
	st := h.session.Status()
	assert.Equal(t, StateCollectingInfo, st.State)
	assert.Equal(t, MessageCardRejected, st.Message)
	assert.True(t, st.CanSubmit)
}

func TestSession_Submit_WidgetFailure(t *testing.T) {
	h := newHarness(t)
	h.widget.tokenErr = errors.New("iframe crashed")
	h.ready(t, "GB")

	_, err := h.session.Submit(context.Background())

	assert.Error(t, err)
	assert.Empty(t, h.capturer.requests)
	assert.Equal(t, StateErrored, h.session.Status().State)
	assert.True(t, h.session.CanSubmit())
}

func TestSession_RetryAfterDeclineUsesFreshReference(t *testing.T) {
	h := newHarness(t)
	h.capturer.result = &payment.CaptureResult{ID: "pay_2", Approved: false}
	h.ready(t, "GB")

	_, err := h.session.Submit(context.Background())
	require.Error(t, err)

	h.capturer.result = &payment.CaptureResult{ID: "pay_3", Approved: true}
	_, err = h.session.Submit(context.Background())
	require.NoError(t, err)

	require.Len(t, h.capturer.requests, 2)
	assert.NotEqual(t, h.capturer.requests[0].Reference, h.capturer.requests[1].Reference)
	require.Len(t, h.orders.requests, 1)
	assert.Equal(t, "pay_3", h.orders.requests[0].PaymentReference)
}

// ============================================
// In-flight and Completion Guards
// ============================================

func TestSession_EditsRejectedWhileInFlight(t *testing.T) {
	h := newHarness(t)
	h.capturer.block = make(chan struct{})
	h.capturer.entered = make(chan struct{})
	h.ready(t, "GB")

	done := make(chan error, 1)
	go func() {
		_, err := h.session.Submit(context.Background())
		done <- err
	}()
	<-h.capturer.entered

	assert.Equal(t, StateCapturingPayment, h.session.Status().State)
	assert.False(t, h.session.CanSubmit())
	assert.ErrorIs(t, h.session.SetAddress(completeAddress("US")), ErrSubmitInFlight)
	assert.ErrorIs(t, h.session.SetContact(Contact{Name: "x"}), ErrSubmitInFlight)
	assert.ErrorIs(t, h.session.SetPaymentMethod(payment.MethodCard), ErrSubmitInFlight)
	_, err := h.session.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(h.capturer.block)
	require.NoError(t, <-done)
	assert.Len(t, h.capturer.requests, 1)
}

func TestSession_EditsRejectedAfterSuccess(t *testing.T) {
	h := newHarness(t)
	h.ready(t, "GB")
	_, err := h.session.Submit(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, h.session.SetAddress(completeAddress("GB")), ErrAlreadyCompleted)
	assert.ErrorIs(t, h.session.SetPaymentMethod(payment.MethodCard), ErrAlreadyCompleted)
	_, err = h.session.Submit(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.False(t, h.session.CanSubmit())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_tokenization", StateAwaitingTokenization.String())
	assert.Equal(t, "state(42)", State(42).String())
}
