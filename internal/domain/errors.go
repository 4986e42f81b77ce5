package domain

import "errors"

// Failure kinds shared across the pipeline. Layers wrap these with %w and
// callers match with errors.Is; only the collector turns them into run-level
// outcomes.
var (
	ErrConfig     = errors.New("configuration error")
	ErrNetwork    = errors.New("network error")
	ErrNotFound   = errors.New("not found")
	ErrParse      = errors.New("parse error")
	ErrValidation = errors.New("validation error")
	ErrQuality    = errors.New("quality gate failed")
	ErrStorage    = errors.New("storage error")
	ErrCancelled  = errors.New("run cancelled")
)
