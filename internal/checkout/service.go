package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/example/jennys-storefront/internal/domain/cart"
	"github.com/example/jennys-storefront/internal/domain/order"
	"github.com/example/jennys-storefront/internal/notify"
	"github.com/example/jennys-storefront/internal/payment"
	"go.uber.org/zap"
)

// CartOpener returns the shared cart of a client session.
type CartOpener interface {
	Open(ctx context.Context, sessionID string) (*cart.Store, error)
}

// Notifiers shows notifications on one client session's surface.
type Notifiers interface {
	Show(sessionID, message string, payload any) notify.Notification
}

type sessionNotifier struct {
	notifiers Notifiers
	sessionID string
}

func (n sessionNotifier) Show(message string, payload any) notify.Notification {
	return n.notifiers.Show(n.sessionID, message, payload)
}

// DefaultSessionTTL is how long an unfinished checkout is kept after its
// last submission.
const DefaultSessionTTL = 30 * time.Minute

// Form is everything a checkout request submits at once.
type Form struct {
	Contact Contact
	Address order.Address
	Method  payment.Method
}

type liveSession struct {
	session  *Session
	lastUsed time.Time
}

// Service keeps one live Session per client session and runs checkouts
// against it. Succeeded sessions are dropped at once, unfinished ones after
// SessionTTL without a submission.
type Service struct {
	carts     CartOpener
	capturer  payment.Capturer
	orders    OrderCreator
	notifiers Notifiers
	newWidget func(token string) payment.Widget
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*liveSession
	busy     map[string]bool
}

func NewService(
	carts CartOpener,
	capturer payment.Capturer,
	orders OrderCreator,
	notifiers Notifiers,
	newWidget func(token string) payment.Widget,
	cfg Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		carts:     carts,
		capturer:  capturer,
		orders:    orders,
		notifiers: notifiers,
		newWidget: newWidget,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*liveSession),
		busy:      make(map[string]bool),
	}
}

func (s *Service) sessionTTL() time.Duration {
	if s.cfg.SessionTTL > 0 {
		return s.cfg.SessionTTL
	}
	return DefaultSessionTTL
}

// session returns the live checkout of sessionID with a freshly loaded cart.
// The cart is read before taking mu so slow storage only delays its own
// session.
func (s *Service) session(ctx context.Context, sessionID string) (*Session, error) {
	c, err := s.carts.Open(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictIdle(now)

	if live, ok := s.sessions[sessionID]; ok {
		live.lastUsed = now
		live.session.useCart(c)
		return live.session, nil
	}
	var notifier Notifier
	if s.notifiers != nil {
		notifier = sessionNotifier{notifiers: s.notifiers, sessionID: sessionID}
	}
	sess := NewSession(Deps{
		Cart:     c,
		Capturer: s.capturer,
		Orders:   s.orders,
		Notifier: notifier,
		Logger:   s.logger.With(zap.String("session_id", sessionID)),
	}, s.cfg)
	s.sessions[sessionID] = &liveSession{session: sess, lastUsed: now}
	return sess, nil
}

// evictIdle must be called with mu held.
func (s *Service) evictIdle(now time.Time) {
	ttl := s.sessionTTL()
	for id, live := range s.sessions {
		if !s.busy[id] && now.Sub(live.lastUsed) > ttl {
			delete(s.sessions, id)
			s.logger.Debug("checkout session expired", zap.String("session_id", id))
		}
	}
}

func (s *Service) acquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[sessionID] {
		return false
	}
	s.busy[sessionID] = true
	return true
}

func (s *Service) release(sessionID string, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, sessionID)
	if done {
		delete(s.sessions, sessionID)
	}
}

// Checkout fills the session's form, prepares a widget around the card token
// and submits. A second call for the same session while one is running gets
// ErrSubmitInFlight.
func (s *Service) Checkout(ctx context.Context, sessionID string, form Form, token string) (*order.Order, error) {
	if !s.acquire(sessionID) {
		return nil, ErrSubmitInFlight
	}
	var placed *order.Order
	defer func() { s.release(sessionID, placed != nil) }()

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.SetAddress(form.Address); err != nil {
		return nil, err
	}
	if form.Contact != (Contact{}) {
		contact := form.Contact
		if contact.Name == "" {
			contact.Name = form.Address.FullName
		}
		if contact.Email == "" {
			contact.Email = form.Address.Email
		}
		if contact.Phone == "" {
			contact.Phone = form.Address.Phone
		}
		if err := sess.SetContact(contact); err != nil {
			return nil, err
		}
	}
	if form.Method != "" {
		if err := sess.SetPaymentMethod(form.Method); err != nil {
			return nil, err
		}
	}
	if err := sess.UseWidget(s.newWidget(token)); err != nil {
		return nil, err
	}
	if err := sess.Prepare(ctx); err != nil {
		return nil, err
	}

	placed, err = sess.Submit(ctx)
	return placed, err
}

// Status returns the state of a session's live checkout.
func (s *Service) Status(sessionID string) (Status, bool) {
	s.mu.Lock()
	live, ok := s.sessions[sessionID]
	if ok && !s.busy[sessionID] && s.now().Sub(live.lastUsed) > s.sessionTTL() {
		delete(s.sessions, sessionID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return Status{}, false
	}
	return live.session.Status(), true
}
