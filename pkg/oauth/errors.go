package oauth

import "errors"

var (
	// ErrEmptyToken is returned when a stored grant is empty.
	ErrEmptyToken = errors.New("oauth: empty token")

	// ErrInvalidToken is returned when a stored grant cannot be decoded.
	ErrInvalidToken = errors.New("oauth: invalid token")

	// ErrTokenExpired is returned when a grant is expired and cannot be refreshed.
	ErrTokenExpired = errors.New("oauth: token expired")
)
