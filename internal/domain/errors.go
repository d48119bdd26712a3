package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrUpstream      = errors.New("upstream failure")
	ErrStaleSequence = errors.New("stale sequence")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrBreakerOpen   = errors.New("circuit breaker open")
	ErrWSDisconnect  = errors.New("websocket disconnected")
)
