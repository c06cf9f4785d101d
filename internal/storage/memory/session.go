package memory

import (
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/storage"
)

type subscriber struct {
	id uint64
	fn func(models.SessionChange)
}

// SessionStore is the process-wide CredentialStore. Reads never wait on
// subscriber callbacks; writes are serialized so notifications are delivered
// in write order.
type SessionStore struct {
	mu         sync.RWMutex
	current    *models.Session
	generation uint64

	// writeMu is held across swap and notification. Subscribers must not write back.
	writeMu sync.Mutex

	subMu  sync.Mutex
	subs   []subscriber
	nextID uint64

	log *zap.SugaredLogger
}

var _ storage.CredentialStore = (*SessionStore)(nil)

func NewSessionStore(log *zap.SugaredLogger) *SessionStore {
	return &SessionStore{log: log}
}

func (s *SessionStore) Read() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// Generation changes on every Write and Clear.
func (s *SessionStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *SessionStore) Write(session *models.Session, reason models.ChangeReason) {
	if session == nil {
		s.Clear(reason)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.swap(session, reason)
}

// WriteIf writes session only if no Write or Clear happened since gen was
// read. It reports whether the write took place.
func (s *SessionStore) WriteIf(gen uint64, session *models.Session, reason models.ChangeReason) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.Generation() != gen {
		s.log.Debugw("Session write skipped, store changed", "reason", reason)
		return false
	}
	s.swap(session, reason)
	return true
}

// swap must be called with writeMu held.
func (s *SessionStore) swap(session *models.Session, reason models.ChangeReason) {
	cp := *session
	s.mu.Lock()
	s.current = &cp
	s.generation++
	s.mu.Unlock()

	s.log.Debugw("Session written", "userID", cp.Identity.ID, "reason", reason, "expiresAt", cp.ExpiresAt)
	s.notify(models.SessionChange{Session: &cp, Reason: reason})
}

// Clear drops the session. Clearing an absent session does not notify but
// still advances the generation, so a pending WriteIf is cancelled.
func (s *SessionStore) Clear(reason models.ChangeReason) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.generation++
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	userID := s.current.Identity.ID
	s.current = nil
	s.mu.Unlock()

	s.log.Debugw("Session cleared", "userID", userID, "reason", reason)
	s.notify(models.SessionChange{Session: nil, Reason: reason})
}

// Subscribe registers fn for every later change. fn runs synchronously on the
// writing goroutine while the store is locked for writes: it may call Read,
// but calling Write, WriteIf or Clear from fn (directly or through
// AuthService.Logout) deadlocks. Hand such work to another goroutine.
func (s *SessionStore) Subscribe(fn func(models.SessionChange)) func() {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

func (s *SessionStore) SubscriberCount() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

func (s *SessionStore) unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// notify delivers to a snapshot of subscribers, so one added mid-delivery
// waits for the next change.
func (s *SessionStore) notify(change models.SessionChange) {
	s.subMu.Lock()
	snapshot := make([]subscriber, len(s.subs))
	copy(snapshot, s.subs)
	s.subMu.Unlock()

	for _, sub := range snapshot {
		s.safeCall(sub.fn, change)
	}
}

func (s *SessionStore) safeCall(fn func(models.SessionChange), change models.SessionChange) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Session subscriber panicked", "reason", change.Reason, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn(change)
}
