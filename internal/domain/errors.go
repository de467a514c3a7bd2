package domain

import "errors"

var (
	// Cash session errors
	ErrSessionNotFound      = errors.New("cash session not found")
	ErrSessionNotOpen       = errors.New("cash session is not open")
	ErrSessionAlreadyClosed = errors.New("cash session already has a closing")
	ErrClosingNotFound      = errors.New("closing not found")
	ErrInvalidClosing       = errors.New("queued closing payload is invalid")

	// Backend errors
	ErrBackendUnauthorized = errors.New("backend rejected credentials")
	ErrBackendUnavailable  = errors.New("backend unavailable")
)
