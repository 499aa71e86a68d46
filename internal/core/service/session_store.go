package service

import (
	"github.com/rs/zerolog"

	"github.com/lt-jshipley/appcore/internal/core/domain"
	"github.com/lt-jshipley/appcore/internal/core/ports"
	"github.com/lt-jshipley/appcore/internal/core/store"
)

const sessionKey = "session"

// persistedSession is the durable slice of the session. The token is never
// part of it: anything that can read the state store must not obtain a
// bearer credential.
type persistedSession struct {
	User *domain.UserSummary `json:"user"`
}

// SessionStore owns the client's authentication state. The identity record
// survives restarts so the UI can show who was signed in, but the token is
// memory-only and IsAuthenticated stays false until the next SetAuth.
type SessionStore struct {
	store *store.Store[domain.Session]
	kv    ports.KV
	log   zerolog.Logger
}

// NewSessionStore hydrates the persisted user (if any) and returns a store
// in the logged-out state.
func NewSessionStore(kv ports.KV, log zerolog.Logger) *SessionStore {
	initial := domain.EmptySession()

	var rec persistedSession
	if store.Hydrate(kv, sessionKey, &rec, log) && rec.User != nil {
		initial.User = rec.User
	}

	return &SessionStore{
		store: store.New(initial),
		kv:    kv,
		log:   log,
	}
}

// State returns a snapshot of the current session.
func (s *SessionStore) State() domain.Session {
	return s.store.GetState()
}

// Subscribe registers fn for synchronous notification after every session
// mutation. Returns an unsubscribe func.
func (s *SessionStore) Subscribe(fn func(domain.Session)) func() {
	return s.store.Subscribe(fn)
}

// SetAuth atomically installs a fully-authenticated session. Called exactly
// once per successful login or registration.
func (s *SessionStore) SetAuth(token string, user domain.UserSummary) {
	s.store.SetState(func(domain.Session) domain.Session {
		return domain.AuthenticatedSession(token, user)
	})
	s.persistUser(&user)
	s.log.Info().Str("user_id", user.ID).Msg("session established")
}

// Logout atomically clears token and user together and wipes the persisted
// identity record.
func (s *SessionStore) Logout() {
	s.store.SetState(func(domain.Session) domain.Session {
		return domain.EmptySession()
	})
	if err := s.kv.Delete(sessionKey); err != nil {
		s.log.Error().Err(err).Msg("failed to clear persisted session")
	}
	s.log.Info().Msg("session cleared")
}

// UpdateUser shallow-merges patch into the current user. When no user is
// signed in this is a no-op, not an error: a stale profile update racing a
// logout must not resurrect a user record. The race is logged so it stays
// visible in the field.
func (s *SessionStore) UpdateUser(patch domain.UserPatch) {
	var updated *domain.UserSummary
	s.store.SetState(func(cur domain.Session) domain.Session {
		if cur.User == nil {
			return cur
		}
		u := patch.Apply(*cur.User)
		cur.User = &u
		updated = &u
		return cur
	})
	if updated == nil {
		s.log.Warn().Msg("user update dropped: no active user")
		return
	}
	s.persistUser(updated)
}

func (s *SessionStore) persistUser(user *domain.UserSummary) {
	if err := s.kv.Save(sessionKey, persistedSession{User: user}); err != nil {
		s.log.Error().Err(err).Msg("failed to persist session user")
	}
}
