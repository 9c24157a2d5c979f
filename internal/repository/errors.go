package repository

import "errors"

// Sentinel errors shared by every store implementation so the service layer
// can branch with errors.Is regardless of the configured backend.
var (
	ErrNotFound  = errors.New("subscriber not found")
	ErrDuplicate = errors.New("subscriber already exists")
)
