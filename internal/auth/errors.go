package auth

import "errors"

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingSecret = errors.New("AUTH_JWT_SECRET is not set")
	ErrInvalidClaims = errors.New("invalid token claims")
)
