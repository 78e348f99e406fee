// Package advisor keeps what the assistant hands to the advisor: dashboard
// notifications and email drafts awaiting approval.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultCapacity = 100

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
	NotificationAction  NotificationType = "action"
	NotificationSuccess NotificationType = "success"
)

func (t NotificationType) valid() bool {
	switch t {
	case NotificationInfo, NotificationWarning, NotificationAction, NotificationSuccess:
		return true
	}
	return false
}

type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
	Read      bool             `json:"read"`
}

type DraftStatus string

const DraftPending DraftStatus = "pending"

type EmailDraft struct {
	ID         string      `json:"id"`
	ClientName string      `json:"client_name"`
	To         string      `json:"to"`
	Subject    string      `json:"subject"`
	Body       string      `json:"body"`
	Status     DraftStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

var ErrInvalidNotification = errors.New("invalid notification")
var ErrInvalidDraft = errors.New("invalid email draft")

type NotificationSink interface {
	Notify(ctx context.Context, n Notification) (Notification, error)
}

type DraftEmailSink interface {
	DraftEmail(ctx context.Context, d EmailDraft) (EmailDraft, error)
}

// Store is an in-memory NotificationSink and DraftEmailSink. It keeps the
// newest entries up to its capacity.
type Store struct {
	capacity int
	now      func() time.Time

	mu            sync.RWMutex
	notifications []Notification
	drafts        []EmailDraft
}

type StoreOption func(*Store)

func WithCapacity(capacity int) StoreOption {
	return func(s *Store) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

func withClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{capacity: DefaultCapacity, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Notify(ctx context.Context, n Notification) (Notification, error) {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return Notification{}, fmt.Errorf("%w: missing title", ErrInvalidNotification)
	}
	if n.Type == "" {
		n.Type = NotificationAction
	}
	if !n.Type.valid() {
		return Notification{}, fmt.Errorf("%w: unknown type %q", ErrInvalidNotification, n.Type)
	}
	n.ID = uuid.NewString()
	n.CreatedAt = s.now()
	n.Read = false

	s.mu.Lock()
	s.notifications = appendBounded(s.notifications, n, s.capacity)
	s.mu.Unlock()

	logger.InfoContext(ctx, "notification stored", "id", n.ID, "type", string(n.Type))
	return n, nil
}

func (s *Store) DraftEmail(ctx context.Context, d EmailDraft) (EmailDraft, error) {
	if strings.TrimSpace(d.To) == "" || strings.TrimSpace(d.Subject) == "" {
		return EmailDraft{}, fmt.Errorf("%w: recipient and subject are required", ErrInvalidDraft)
	}
	d.ID = uuid.NewString()
	d.Status = DraftPending
	d.CreatedAt = s.now()

	s.mu.Lock()
	s.drafts = appendBounded(s.drafts, d, s.capacity)
	s.mu.Unlock()

	logger.InfoContext(ctx, "email draft stored", "id", d.ID)
	return d, nil
}

// Notifications returns up to limit notifications, newest first. A limit of
// zero or less returns all of them.
func (s *Store) Notifications(limit int) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.notifications, limit)
}

func (s *Store) EmailDrafts(limit int) []EmailDraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.drafts, limit)
}

func appendBounded[T any](items []T, item T, capacity int) []T {
	items = append(items, item)
	if over := len(items) - capacity; over > 0 {
		items = append(items[:0:0], items[over:]...)
	}
	return items
}

func newestFirst[T any](items []T, limit int) []T {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]T, 0, limit)
	for i := len(items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, items[i])
	}
	return out
}
