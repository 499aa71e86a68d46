package store

import "github.com/rs/zerolog"

// Instrument logs every state transition of the store at debug level under
// the given name. Orthogonal to Persist: wiring code composes either, both,
// or neither. Returns a detach func.
func Instrument[T any](s *Store[T], name string, log zerolog.Logger) func() {
	return s.Subscribe(func(state T) {
		log.Debug().Str("store", name).Interface("state", state).Msg("state transition")
	})
}
