package cart

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrInvalidSession = errors.New("session id is required")

// Service opens session carts over shared storage. Storage is the source of
// truth: every Store re-reads it before a mutation, so handles in other
// requests or other API replicas see each other's writes. Mutations of one
// session are serialized within the process.
type Service struct {
	storage Storage
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(storage Storage, logger *zap.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
		locks:   make(map[string]*sessionLock),
	}
}

// Key returns the storage key for a session's cart.
func Key(sessionID string) string {
	return StorageKey + ":" + sessionID
}

// Open loads the session's cart. Unreadable stored data starts the session
// with an empty cart.
func (s *Service) Open(ctx context.Context, sessionID string) (*Store, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	st := &Store{
		key:     Key(sessionID),
		storage: s.storage,
		logger:  s.logger,
		lock:    func() func() { return s.lock(sessionID) },
	}
	items, err := st.load(ctx)
	if err != nil {
		return nil, err
	}
	st.items = items
	return st, nil
}

// lock holds the session's mutation lock until the returned func is called.
// Locks of sessions nobody is mutating are dropped.
func (s *Service) lock(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}

// heldLocks is the number of sessions with a live mutation lock.
func (s *Service) heldLocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
