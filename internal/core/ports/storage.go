package ports

// KV is synchronous durable storage for small JSON-serializable state.
// Implementations must tolerate unknown extra fields on Load so the
// persisted shape stays forward-compatible without versioning.
type KV interface {
	// Load decodes the record stored under key into dest. It returns false
	// with a nil error when no record exists.
	Load(key string, dest any) (bool, error)

	// Save encodes v as JSON and stores it under key, replacing any
	// previous record.
	Save(key string, v any) error

	// Delete removes the record under key. Deleting a missing record is
	// not an error.
	Delete(key string) error
}
