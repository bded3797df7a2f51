package iconcache

import "fmt"

// GenerationError wraps a failed attempt to produce one icon.
type GenerationError struct {
	SourceKey string
	Path      string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate icon for %s: %v", e.SourceKey, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
