package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidOrder = errors.New("invalid order parameters")
	ErrInvalidSide  = errors.New("invalid side, expecting bid or ask")
	ErrExchange     = errors.New("exchange request failed")
	ErrLockHeld     = errors.New("lock already held")
)
