package domain

import "errors"

var (
	// ErrValidation marks input that failed domain validation.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks lookups for entities that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited marks operations rejected by throughput limits.
	ErrRateLimited = errors.New("rate limited")
)
