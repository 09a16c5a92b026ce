package chat_errors

import (
	"errors"
)

// Common errors
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAlreadyExists     = errors.New("already exists")
	ErrNotParticipant    = errors.New("not an active participant")
	ErrEditWindowExpired = errors.New("edit window expired")
	ErrMessageDeleted    = errors.New("message already deleted")
)
