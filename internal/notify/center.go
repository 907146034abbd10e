// Package notify is the storefront's transient notification surface. Each
// client session has its own surface; on it at most one notification is
// active and showing a new one replaces it.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultDuration is how long a notification stays up.
const DefaultDuration = 3 * time.Second

type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Payload   any       `json:"payload,omitempty"`
	ShownAt   time.Time `json:"shown_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Center owns the active notification of one surface.
type Center struct {
	duration time.Duration
	logger   *zap.Logger
	// onIdle runs, without mu held, after the notification is cleared.
	onIdle func()

	mu      sync.Mutex
	current *Notification
	timer   *time.Timer
}

func NewCenter(duration time.Duration, logger *zap.Logger) *Center {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Center{duration: duration, logger: logger}
}

// Show replaces the active notification and schedules its dismissal.
func (c *Center) Show(message string, payload any) Notification {
	now := time.Now()
	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Payload:   payload,
		ShownAt:   now,
		ExpiresAt: now.Add(c.duration),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.current = &n
	c.timer = time.AfterFunc(c.duration, func() { c.dismiss(n.ID) })

	c.logger.Debug("notification shown", zap.String("id", n.ID), zap.String("message", message))
	return n
}

// Current returns the active notification, if any.
func (c *Center) Current() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Notification{}, false
	}
	return *c.current, true
}

func (c *Center) Dismiss() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.current = nil
	c.mu.Unlock()
	c.idle()
}

// dismiss clears the notification only if it is still the one the timer
// was started for.
func (c *Center) dismiss(id string) {
	c.mu.Lock()
	cleared := c.current != nil && c.current.ID == id
	if cleared {
		c.current = nil
		c.timer = nil
	}
	c.mu.Unlock()
	if cleared {
		c.idle()
	}
}

func (c *Center) idle() {
	if c.onIdle != nil {
		c.onIdle()
	}
}

func (c *Center) empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == nil
}
