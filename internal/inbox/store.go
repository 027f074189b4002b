// Package inbox owns the operator's local copy of the notification feed and
// keeps it reconciled with the backend.
//
// A Refresh is authoritative: its result replaces the local feed and unread
// count. Mutations are applied locally only after the server confirms them,
// so a failed request never needs a rollback. Operations are not queued; if
// a mark-read and a refresh are both in flight, whichever response lands last
// is what the operator sees.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/fleetconsole/internal/model"
)

var (
	// ErrNotFound is returned by MarkRead for an id absent from the local feed.
	ErrNotFound = errors.New("notification not in local feed")

	// ErrClosed is returned once the store has been torn down.
	ErrClosed = errors.New("notification store closed")
)

// Backend is the subset of the API client the store talks to.
type Backend interface {
	Notifications(ctx context.Context, perPage int) ([]model.Notification, error)
	UnreadCount(ctx context.Context) (*int, error)
	MarkNotificationRead(ctx context.Context, id model.ID) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Snapshot is a copy of the store state at one point in time.
type Snapshot struct {
	Feed        []model.Notification
	UnreadCount int

	// CountKnown is false until a refresh returned an explicit count.
	CountKnown bool

	// LastSyncedAt is when the last successful refresh landed.
	LastSyncedAt time.Time
}

// Unread returns the notifications of the feed that are still unread.
func (s Snapshot) Unread() []model.Notification {
	var out []model.Notification
	for _, n := range s.Feed {
		if !n.IsRead {
			out = append(out, n)
		}
	}
	return out
}

// Store is the authoritative local notification list for one inbox view.
type Store struct {
	id       string
	backend  Backend
	pageSize int
	now      func() time.Time
	log      *logrus.Entry

	mu           sync.Mutex
	feed         []model.Notification
	unreadCount  int
	countKnown   bool
	lastSyncedAt time.Time
	closed       bool
}

// New creates an empty store that fetches pageSize notifications per refresh.
func New(backend Backend, pageSize int) *Store {
	id := uuid.NewString()
	return &Store{
		id:       id,
		backend:  backend,
		pageSize: pageSize,
		now:      time.Now,
		log: logrus.WithFields(logrus.Fields{
			"component": "inbox",
			"store_id":  id,
		}),
	}
}

// ID returns the store's instance id.
func (s *Store) ID() string { return s.id }

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := make([]model.Notification, len(s.feed))
	copy(feed, s.feed)
	return Snapshot{
		Feed:         feed,
		UnreadCount:  s.unreadCount,
		CountKnown:   s.countKnown,
		LastSyncedAt: s.lastSyncedAt,
	}
}

// Refresh fetches the feed and the unread count and replaces the local state
// with them. If either fetch fails the local state is left untouched.
func (s *Store) Refresh(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}

	feed, err := s.backend.Notifications(ctx, s.pageSize)
	if err != nil {
		return s.fail("refresh", fmt.Errorf("fetching notifications: %w", err))
	}
	count, err := s.backend.UnreadCount(ctx)
	if err != nil {
		return s.fail("refresh", fmt.Errorf("fetching unread count: %w", err))
	}

	for i := range feed {
		feed[i].Normalize()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.feed = feed
	if count != nil {
		s.unreadCount = max(*count, 0)
		s.countKnown = true
	} else {
		s.unreadCount = 0
		s.countKnown = false
	}
	s.lastSyncedAt = s.now()

	s.log.WithFields(logrus.Fields{
		"items":  len(feed),
		"unread": s.unreadCount,
	}).Debug("inbox refreshed")
	return nil
}

// MarkRead marks one notification read. An already-read notification is a
// no-op and issues no request.
func (s *Store) MarkRead(ctx context.Context, id model.ID) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	if s.feed[idx].IsRead {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.backend.MarkNotificationRead(ctx, id); err != nil {
		return s.fail("mark_read", fmt.Errorf("marking notification %s read: %w", id, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	// A refresh may have landed while the request was in flight; apply the
	// change only to an item that is still unread locally.
	idx = s.indexOf(id)
	if idx < 0 || s.feed[idx].IsRead {
		return nil
	}
	readAt := s.now()
	s.feed[idx].IsRead = true
	s.feed[idx].ReadAt = &readAt
	if s.unreadCount > 0 {
		s.unreadCount--
	}
	return nil
}

// MarkAllRead marks every notification read. Items read earlier keep their
// original read time; the rest share one timestamp.
func (s *Store) MarkAllRead(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}

	if err := s.backend.MarkAllNotificationsRead(ctx); err != nil {
		return s.fail("mark_all_read", fmt.Errorf("marking all notifications read: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	readAt := s.now()
	for i := range s.feed {
		if s.feed[i].IsRead {
			continue
		}
		s.feed[i].IsRead = true
		s.feed[i].ReadAt = &readAt
	}
	s.unreadCount = 0
	s.countKnown = true
	return nil
}

// Close tears the store down. Responses that land afterwards are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id model.ID) int {
	for i := range s.feed {
		if s.feed[i].ID == id {
			return i
		}
	}
	return -1
}

// fail logs a failed cycle and returns err unchanged.
func (s *Store) fail(op string, err error) error {
	s.log.WithFields(logrus.Fields{
		"op":    op,
		"error": err,
	}).Warn("inbox operation failed, keeping previous state")
	return err
}
