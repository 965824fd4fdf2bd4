package models

import (
	"errors"
	"fmt"
)

// User related errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
)

// Session related errors
var (
	ErrSessionNotFound = errors.New("session not found")
)

// Fitcheck related errors
var (
	ErrFitCheckNotFound = errors.New("fitcheck not found")
)

// UploadError reports a rejected image upload. It is raised before any
// model call is attempted.
type UploadError struct {
	Issue string
}

func (e UploadError) Error() string {
	return fmt.Sprintf("invalid upload: %v", e.Issue)
}
