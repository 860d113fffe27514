// Package dispatch delivers lifecycle events to the notification
// collaborators. Delivery is fire-and-forget: a failing notifier is logged
// and counted but never reported back to the caller.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/roadside-matching/internal/models"
	"github.com/example/roadside-matching/internal/observability"
)

type Notifier interface {
	Notify(ctx context.Context, ev models.Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev models.Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev models.Event) error { return f(ctx, ev) }

// Fanout sends every event to all registered notifiers on background
// goroutines, each bounded by Timeout.
type Fanout struct {
	Timeout time.Duration
	Logger  *slog.Logger

	mu        sync.RWMutex
	notifiers map[string]Notifier
	wg        sync.WaitGroup
}

func NewFanout(timeout time.Duration, logger *slog.Logger) *Fanout {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{Timeout: timeout, Logger: logger, notifiers: make(map[string]Notifier)}
}

// Register adds a named notifier. The name is used in logs and metrics.
func (f *Fanout) Register(name string, n Notifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifiers[name] = n
}

// Notify returns immediately; it never fails.
func (f *Fanout) Notify(ctx context.Context, ev models.Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	// detach from the caller so a finished HTTP request does not cancel delivery
	base := context.WithoutCancel(ctx)
	for name, n := range f.notifiers {
		f.wg.Add(1)
		go func(name string, n Notifier) {
			defer f.wg.Done()
			ctx, cancel := context.WithTimeout(base, f.Timeout)
			defer cancel()
			if err := n.Notify(ctx, ev); err != nil {
				observability.NotificationsTotal.WithLabelValues(name, "error").Inc()
				f.Logger.Warn("notification failed", "notifier", name, "event", ev.Type, "request_id", ev.RequestID, "error", err)
				return
			}
			observability.NotificationsTotal.WithLabelValues(name, "ok").Inc()
		}(name, n)
	}
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (f *Fanout) Wait() { f.wg.Wait() }
