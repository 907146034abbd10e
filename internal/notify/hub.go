package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Hub keeps one Center per client session, so a shopper only ever sees
// their own notifications. A session's Center is dropped once it has
// nothing to show.
type Hub struct {
	duration time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	centers map[string]*Center
}

func NewHub(duration time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		duration: duration,
		logger:   logger,
		centers:  make(map[string]*Center),
	}
}

// Show replaces the active notification of sessionID.
func (h *Hub) Show(sessionID, message string, payload any) Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.centers[sessionID]
	if !ok {
		c = NewCenter(h.duration, h.logger.With(zap.String("session_id", sessionID)))
		c.onIdle = func() { h.release(sessionID, c) }
		h.centers[sessionID] = c
	}
	return c.Show(message, payload)
}

func (h *Hub) Current(sessionID string) (Notification, bool) {
	h.mu.Lock()
	c, ok := h.centers[sessionID]
	h.mu.Unlock()
	if !ok {
		return Notification{}, false
	}
	return c.Current()
}

func (h *Hub) Dismiss(sessionID string) {
	h.mu.Lock()
	c, ok := h.centers[sessionID]
	h.mu.Unlock()
	if ok {
		c.Dismiss()
	}
}

// Sessions is the number of sessions with a live Center.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.centers)
}

func (h *Hub) release(sessionID string, c *Center) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// a Show may have refilled it since the timer fired
	if h.centers[sessionID] == c && c.empty() {
		delete(h.centers, sessionID)
	}
}
