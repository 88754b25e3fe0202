package models

import "errors"

var (
	// ErrValidation rejects input before any request is made.
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrServer     = errors.New("server error")
)
