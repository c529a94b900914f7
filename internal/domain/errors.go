package domain

import "errors"

var (
	ErrKeyNotFound  = errors.New("storage key not found")
	ErrMissingToken = errors.New("login response missing token")
	ErrOpaqueToken  = errors.New("token is not a jwt")
	ErrNoEventSink  = errors.New("event handler is required")
	ErrNoStorage    = errors.New("session storage is required")
	ErrNoSession    = errors.New("no session token")
)
