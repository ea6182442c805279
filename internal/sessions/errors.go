package sessions

import "errors"

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("session not found")
	ErrNotConfigured = errors.New("session lookup not configured")
	ErrUnauthorized  = errors.New("access denied")
)
