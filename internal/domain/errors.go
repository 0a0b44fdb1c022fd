package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	// ErrRunSetup wraps failures that occur before per-item processing starts
	// (run record creation, home pricing source unreachable). These are fatal
	// to the whole run; item-scoped errors never are.
	ErrRunSetup = errors.New("run setup failed")
)
