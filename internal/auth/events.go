package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"dinlipi/internal/models"
)

type EventKind string

const (
	SignedUp         EventKind = "signed_up"
	SignedIn         EventKind = "signed_in"
	SignedOut        EventKind = "signed_out"
	TokenRefreshed   EventKind = "token_refreshed"
	PasswordRecovery EventKind = "password_recovery"
	UserUpdated      EventKind = "user_updated"
)

// Event describes one session change. SessionID is uuid.Nil when the change is
// not tied to a single session.
type Event struct {
	Kind      EventKind
	User      models.User
	SessionID uuid.UUID
	At        time.Time
}

// Listener is called synchronously, in subscription order, for every event.
type Listener func(ctx context.Context, e Event)

type hub struct {
	mu        sync.Mutex
	next      int
	listeners []subscription
}

type subscription struct {
	id int
	fn Listener
}

func (h *hub) subscribe(fn Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	h.listeners = append(h.listeners, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, s := range h.listeners {
				if s.id == id {
					h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (h *hub) emit(ctx context.Context, e Event) {
	h.mu.Lock()
	snapshot := make([]subscription, len(h.listeners))
	copy(snapshot, h.listeners)
	h.mu.Unlock()

	for _, s := range snapshot {
		s.fn(ctx, e)
	}
}
