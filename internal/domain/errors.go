package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrRunNotFound     = errors.New("run not found")
	ErrEmptyBatch      = errors.New("empty prompt batch")
	ErrBlankPrompt     = errors.New("blank prompt in batch")
	ErrNoReference     = errors.New("reference asset unresolved")
	ErrValidation      = errors.New("validation failed")
	ErrProviderFailure = errors.New("provider failure")
)
