package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAllProvidersFailed = errors.New("all vision providers failed")
	ErrLockNotAcquired    = errors.New("could not acquire key lock")
	ErrRunTerminal        = errors.New("run already reached a terminal status")
)
