package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidLimit    = errors.New("invalid limit")
	ErrInvalidCursor   = errors.New("invalid cursor")
	ErrSessionFinished = errors.New("session already finished")
	ErrUnknownStory    = errors.New("story is not part of the session")
)
