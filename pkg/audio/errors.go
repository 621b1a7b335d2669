package audio

import (
	"errors"
	"fmt"
	"io/fs"
)

const (
	ErrorNotFound = "audio_not_found"
	ErrorIO       = "audio_io"
	ErrorBackend  = "audio_backend"
)

// Error represents a stable, categorized audio-adapter failure.
type Error struct {
	Category string
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return e.Category
	}

	return fmt.Sprintf("%s: %s", e.Category, e.Detail)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// NewError creates a categorized audio error wrapping an underlying cause.
func NewError(category string, detail string, err error) error {
	return &Error{Category: category, Detail: detail, Err: err}
}

// IsNotFound reports whether err is the missing-file failure kind.
func IsNotFound(err error) bool {
	return CategoryFromError(err) == ErrorNotFound
}

// CategoryFromError returns the stable category for an error when available.
func CategoryFromError(err error) string {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	if errors.Is(err, fs.ErrNotExist) {
		return ErrorNotFound
	}

	return ErrorIO
}
