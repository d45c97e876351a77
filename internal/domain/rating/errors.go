package rating

import (
	"errors"
	"fmt"
)

// ErrMalformedInput is the root kind for every input the engine refuses to
// compute over. Callers should test with errors.Is against this value.
var ErrMalformedInput = errors.New("malformed rating input")

// Specific malformed-input kinds. Each one wraps ErrMalformedInput.
var (
	ErrMissingMetric = fmt.Errorf("%w: missing metric", ErrMalformedInput)
	ErrUnknownMetric = fmt.Errorf("%w: unknown metric", ErrMalformedInput)
	ErrNonFinite     = fmt.Errorf("%w: non-finite value", ErrMalformedInput)
	ErrMissingRating = fmt.Errorf("%w: missing current rating", ErrMalformedInput)
	ErrDuplicateID   = fmt.Errorf("%w: duplicate story id", ErrMalformedInput)
	ErrEmptyOrdering = fmt.Errorf("%w: empty ordering", ErrMalformedInput)
	ErrEmptyStoryID  = fmt.Errorf("%w: empty story id", ErrMalformedInput)
)
