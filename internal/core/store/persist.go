package store

import (
	"github.com/rs/zerolog"

	"github.com/lt-jshipley/appcore/internal/core/ports"
)

// Persist writes a projection of the store's state through to kv after
// every commit. The projection decides which slice of the state is durable
// (e.g. the session persists its user record but never its token).
//
// A failed write is logged and otherwise ignored: durable state is a
// convenience layer, and the in-memory store stays authoritative.
// Returns a detach func.
func Persist[T, P any](s *Store[T], kv ports.KV, key string, project func(T) P, log zerolog.Logger) func() {
	return s.Subscribe(func(state T) {
		if err := kv.Save(key, project(state)); err != nil {
			log.Error().Err(err).Str("key", key).Msg("state persistence failed")
		}
	})
}

// Hydrate loads the record stored under key into dest, reporting whether a
// record existed. A corrupt record is logged and treated as absent so a bad
// write can never brick startup.
func Hydrate[P any](kv ports.KV, key string, dest *P, log zerolog.Logger) bool {
	ok, err := kv.Load(key, dest)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("discarding unreadable persisted state")
		return false
	}
	return ok
}
