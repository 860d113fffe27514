package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/roadside-matching/internal/models"
	"github.com/example/roadside-matching/internal/observability"
)

const wsWriteWait = 5 * time.Second

// WSSession represents a connected account session
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(ev models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(ev)
}

// WSRegistry holds one live session per account and pushes lifecycle
// events to the client and provider of each request.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

// Add registers conn for accountID, closing any previous session.
func (r *WSRegistry) Add(accountID string, conn *websocket.Conn) *WSSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[accountID]; ok {
		_ = old.conn.Close()
	} else {
		observability.WSSessions.Inc()
	}
	s := &WSSession{conn: conn}
	r.sessions[accountID] = s
	return s
}

// Remove drops the session if it is still the registered one.
func (r *WSRegistry) Remove(accountID string, s *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[accountID]; ok && cur == s {
		delete(r.sessions, accountID)
		observability.WSSessions.Dec()
		_ = s.conn.Close()
	}
}

// Notify implements Notifier. Accounts without a session are skipped.
func (r *WSRegistry) Notify(_ context.Context, ev models.Event) error {
	var errs []error
	for _, id := range []string{ev.ClientID, ev.ProviderOwnerID} {
		if id == "" {
			continue
		}
		r.mu.RLock()
		s, ok := r.sessions[id]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		if err := s.Send(ev); err != nil {
			r.Remove(id, s)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *WSRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

var _ Notifier = (*WSRegistry)(nil)
