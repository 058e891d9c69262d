package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"WhaleWatch/internal/domain/models"
	"WhaleWatch/internal/domain/repository"
	"WhaleWatch/pkg/cache"
	"WhaleWatch/pkg/logger"
)

// Persisted key names.
const (
	TokenKey    = "ww_token"
	IdentityKey = "ww_user"
)

var (
	ErrEmptyToken      = errors.New("session: token is required")
	ErrInvalidIdentity = errors.New("session: identity is required")
)

// Listener observes session transitions.
type Listener func(models.Session)

// Store owns the current session and its persisted copy. It is the only
// writer of session state; readers get copies.
type Store struct {
	mu        sync.RWMutex
	current   models.Session
	backend   cache.Service
	listeners map[int]Listener
	nextID    int

	rejectExpired bool
	now           func() time.Time
	logger        *logger.Logger
	metrics       repository.Metrics
}

type Option func(*Store)

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithRejectExpired makes Restore discard a persisted JWT whose exp claim is
// already in the past.
func WithRejectExpired(reject bool) Option {
	return func(s *Store) { s.rejectExpired = reject }
}

func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(backend cache.Service, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		listeners: make(map[int]Listener),
		now:       time.Now,
		logger:    logger.Nop(),
		metrics:   repository.NopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted session. It never fails: any missing,
// half-present or unreadable state yields the absent session, and orphaned
// keys are removed.
func (s *Store) Restore(ctx context.Context) models.Session {
	restored, reason := s.load(ctx)
	if !restored.Authenticated() {
		if reason != "" {
			s.logger.Warn("discarding persisted session", logger.String("reason", reason))
			if err := s.backend.Delete(ctx, TokenKey, IdentityKey); err != nil {
				s.logger.Warn("failed to remove persisted session", logger.Error(err))
			}
		}
		restored = models.Session{}
	}

	s.mu.Lock()
	s.current = restored
	s.mu.Unlock()

	if restored.Authenticated() {
		s.logger.Info("session restored", logger.String("email", restored.Identity.Email))
	}
	return copySession(restored)
}

// load returns the persisted session, or a reason why it is unusable.
// An empty reason with an absent session means nothing was stored.
func (s *Store) load(ctx context.Context) (models.Session, string) {
	token, tokErr := s.backend.Get(ctx, TokenKey)
	rawIdentity, idErr := s.backend.Get(ctx, IdentityKey)

	switch {
	case errors.Is(tokErr, cache.ErrCacheMiss) && errors.Is(idErr, cache.ErrCacheMiss):
		return models.Session{}, ""
	case tokErr != nil && !errors.Is(tokErr, cache.ErrCacheMiss):
		return models.Session{}, "token unreadable: " + tokErr.Error()
	case idErr != nil && !errors.Is(idErr, cache.ErrCacheMiss):
		return models.Session{}, "identity unreadable: " + idErr.Error()
	case tokErr != nil || idErr != nil:
		return models.Session{}, "only one of token and identity is stored"
	case token == "":
		return models.Session{}, "empty token"
	}

	var identity *models.Identity
	if err := json.Unmarshal([]byte(rawIdentity), &identity); err != nil {
		return models.Session{}, "identity is not valid JSON"
	}
	if identity == nil || !identity.Valid() {
		return models.Session{}, "identity is empty"
	}

	if s.rejectExpired {
		if exp, ok := ExpiresAt(token); ok && !exp.After(s.now()) {
			return models.Session{}, "token expired at " + exp.Format(time.RFC3339)
		}
	}

	return models.Session{Identity: identity, Token: token}, ""
}

// Set replaces identity and token together and persists both in one write.
// In-memory state changes only after persistence succeeds.
func (s *Store) Set(ctx context.Context, identity models.Identity, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if !identity.Valid() {
		return ErrInvalidIdentity
	}

	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}

	s.mu.Lock()
	if err := s.backend.MSet(ctx, map[string]string{
		TokenKey:    token,
		IdentityKey: string(raw),
	}, 0); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist session: %w", err)
	}
	id := identity
	s.current = models.Session{Identity: &id, Token: token}
	snapshot := copySession(s.current)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	s.logger.Info("session established", logger.String("email", identity.Email))
	notify(listeners, snapshot)
	return nil
}

// Clear removes the session from memory and persistence. Listeners are
// notified only when an authenticated session actually ended, so concurrent
// callers produce a single notification. The in-memory state is always
// cleared even when the persisted copy cannot be removed.
func (s *Store) Clear(ctx context.Context, reason string) error {
	s.mu.Lock()
	wasAuthenticated := s.current.Authenticated()
	s.current = models.Session{}
	err := s.backend.Delete(ctx, TokenKey, IdentityKey)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("failed to remove persisted session", logger.Error(err))
		err = fmt.Errorf("remove persisted session: %w", err)
	}
	if wasAuthenticated {
		s.metrics.RecordSessionCleared(reason)
		s.logger.Warn("session cleared", logger.String("reason", reason))
		notify(listeners, models.Session{})
	}
	return err
}

// Current returns a copy of the in-memory session.
func (s *Store) Current() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySession(s.current)
}

// Token returns the bearer credential, or "" when unauthenticated.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// Subscribe registers fn for session transitions and returns a function that
// removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.listeners[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(listeners []Listener, sess models.Session) {
	for _, fn := range listeners {
		fn(copySession(sess))
	}
}

func copySession(s models.Session) models.Session {
	if s.Identity == nil {
		return models.Session{}
	}
	id := *s.Identity
	return models.Session{Identity: &id, Token: s.Token}
}
