package plugin

import (
	"errors"
	"fmt"
)

var (
	ErrRescanInProgress = errors.New("rescan already in progress")
	ErrDuplicatePlugin  = errors.New("plugin already registered")
)

// RescanError reports a failed rescan of one plugin. The plugin keeps its
// previous searchables.
type RescanError struct {
	PluginID string
	Err      error
}

func (e *RescanError) Error() string {
	return fmt.Sprintf("rescan of %s failed: %v", e.PluginID, e.Err)
}

func (e *RescanError) Unwrap() error {
	return e.Err
}
