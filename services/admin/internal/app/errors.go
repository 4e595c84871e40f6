package app

import "errors"

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidStatus means the submitted status is not in the collection's
	// status set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidTransition means the match status change is not allowed from
	// its current state.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidField means an update touched a field that is not editable.
	ErrInvalidField = errors.New("invalid field")
	// ErrEmptyQuery means a search was issued without a term.
	ErrEmptyQuery = errors.New("search term is required")
)
