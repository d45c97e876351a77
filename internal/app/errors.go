package service

import (
	"errors"
	"fmt"

	"github.com/okian/storyrank/internal/domain/rating"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrInvalidInput = fmt.Errorf("%w: invalid request", rating.ErrMalformedInput)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
