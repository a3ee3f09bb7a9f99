package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("tracker link not found")

	// ErrDuplicateToken is returned by stores when the unique constraint on
	// the token rejects a write. Services retry with a fresh token.
	ErrDuplicateToken = errors.New("token already exists")

	ErrStorage = errors.New("storage error")

	ErrTokenSpaceExhausted = fmt.Errorf("%w: could not allocate identifier, try again", ErrStorage)
)

// IsNotFound reports whether err is a not-found condition.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err was caused by caller input.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsDuplicateToken reports whether err is a token uniqueness violation.
func IsDuplicateToken(err error) bool { return errors.Is(err, ErrDuplicateToken) }
