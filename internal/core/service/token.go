package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lt-jshipley/appcore/internal/core/domain"
)

// TokenExpiry reads the exp claim of a bearer token without verifying its
// signature — verification is the backend's job, the client only needs to
// know when to schedule an out-of-band refresh. Returns ErrOpaqueToken for
// tokens that are not JWTs, and a zero time (no error) for JWTs without an
// exp claim.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, domain.ErrOpaqueToken
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}
