package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/mgomes/launchr/internal/search"
	"github.com/mgomes/launchr/internal/settings"
)

// ExecutionContext is shared, read-only environment handed to every plugin.
type ExecutionContext struct {
	UserDataPath string
	Platform     string
}

func NewExecutionContext(userDataPath string) ExecutionContext {
	return ExecutionContext{
		UserDataPath: userDataPath,
		Platform:     runtime.GOOS,
	}
}

// PluginFolder is the private cache and temp folder for one plugin.
func (c ExecutionContext) PluginFolder(pluginID string) string {
	return filepath.Join(c.UserDataPath, pluginID)
}

// Plugin is a data source of searchables.
type Plugin interface {
	// ID is globally unique. It namespaces the plugin's folder and settings.
	ID() string
	// Rescan rediscovers everything and swaps the list on success only.
	Rescan(ctx context.Context) error
	// AllSearchables returns the result of the last successful rescan.
	AllSearchables() []search.Searchable
}

// SettingsProvider is implemented by plugins with options of their own.
// Keys are unqualified and get namespaced with settings.PluginKey.
type SettingsProvider interface {
	DefaultSettings() settings.Settings
}

// Watchable is implemented by plugins whose sources live in folders worth
// watching for changes. WatchesPath reports whether a change to path inside
// one of the roots affects the plugin's results.
type Watchable interface {
	WatchRoots() []string
	WatchesPath(path string) bool
}

// DefaultSettings returns base extended with the enabled flag and provided
// options of every plugin.
func DefaultSettings(base settings.Settings, plugins ...Plugin) settings.Settings {
	out := base.Clone()
	for _, p := range plugins {
		out[settings.PluginEnabledKey(p.ID())] = true
		if sp, ok := p.(SettingsProvider); ok {
			for k, v := range sp.DefaultSettings() {
				out[settings.PluginKey(p.ID(), k)] = v
			}
		}
	}
	return out
}

func ensureFolder(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create plugin folder: %w", err)
	}
	return nil
}
