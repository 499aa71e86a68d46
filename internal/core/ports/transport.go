package ports

import "net/http"

// Doer is the slice of *http.Client the request pipeline needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource returns the current bearer token, or "" when no session is
// established. The pipeline calls it on every request, never caching the
// result, so a token rotated mid-session is honoured by the next call.
type TokenSource func() string
