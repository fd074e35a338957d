package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotActive          = errors.New("entity not active")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrExpired            = errors.New("time window expired")
	ErrInvalidSensitivity = errors.New("sensitivity level out of range")
	ErrNoSuchPermission   = errors.New("no such special permission")
)
