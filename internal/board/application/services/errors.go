package services

import (
	"errors"
)

var (
	// ErrNoEligibleUsers is returned by smart assign when nobody is registered.
	ErrNoEligibleUsers = errors.New("no eligible users")
	// ErrInvalidResolution is returned for an unknown resolution strategy.
	ErrInvalidResolution = errors.New("invalid conflict resolution")
)
