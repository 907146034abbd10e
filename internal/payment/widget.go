package payment

import (
	"context"
	"strings"
	"sync"
)

// ClientTokenWidget wraps a token that the processor's browser SDK already
// produced. It is ready as soon as it is initialised and yields its token once.
type ClientTokenWidget struct {
	mu       sync.Mutex
	token    string
	used     bool
	ready    chan struct{}
	initOnce sync.Once
}

func NewClientTokenWidget(token string) *ClientTokenWidget {
	return &ClientTokenWidget{
		token: strings.TrimSpace(token),
		ready: make(chan struct{}),
	}
}

func (w *ClientTokenWidget) Init(_ context.Context, cfg WidgetConfig) error {
	if _, err := ParseMethod(string(cfg.Method)); err != nil {
		return err
	}
	w.initOnce.Do(func() { close(w.ready) })
	return nil
}

func (w *ClientTokenWidget) Ready() <-chan struct{} {
	return w.ready
}

func (w *ClientTokenWidget) Tokenize(ctx context.Context) (string, error) {
	select {
	case <-w.ready:
	default:
		return "", ErrWidgetNotReady
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.token == "" || w.used {
		return "", ErrTokenization
	}
	w.used = true
	return w.token, nil
}
