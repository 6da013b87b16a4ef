package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidCategory = errors.New("unknown category")
	ErrEmptyQuery      = errors.New("empty query")
)
