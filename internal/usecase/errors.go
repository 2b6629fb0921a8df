package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrConflict              = errors.New("resource conflict")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// Caller-visible dispute errors. Both chain to the generic sentinels so the
// HTTP layer can map them without extra cases.
var (
	ErrNegotiationNotFound = fmt.Errorf("%w: negotiation not found", ErrNotFound)
	ErrActiveDisputeExists = fmt.Errorf("%w: an active dispute already exists for this negotiation", ErrConflict)
)
