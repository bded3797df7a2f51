package settings

import (
	"maps"
	"time"
)

// Settings is a flat mapping from dotted, namespaced keys to primitive values.
type Settings map[string]any

const (
	KeyHideWindowOnBlur                 = "general.hideWindowOnBlur"
	KeyAutomaticRescanEnabled           = "searchEngine.automaticRescanEnabled"
	KeyAutomaticRescanIntervalInSeconds = "searchEngine.automaticRescanIntervalInSeconds"
	KeyThreshold                        = "searchEngine.threshold"
	KeyRescanOnChange                   = "searchEngine.rescanOnChange"
)

// ApplicationDefaults returns the compiled-in defaults for every
// application-level key. Plugin keys are added by the plugin package.
func ApplicationDefaults() Settings {
	return Settings{
		KeyHideWindowOnBlur:                 true,
		KeyAutomaticRescanEnabled:           true,
		KeyAutomaticRescanIntervalInSeconds: 300,
		KeyThreshold:                        0.5,
		KeyRescanOnChange:                   false,
	}
}

// PluginKey namespaces a plugin option, e.g. PluginKey("x", "enabled") is
// "plugins.x.enabled".
func PluginKey(pluginID, option string) string {
	return "plugins." + pluginID + "." + option
}

func PluginEnabledKey(pluginID string) string {
	return PluginKey(pluginID, "enabled")
}

func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	maps.Copy(out, s)
	return out
}

// Merge applies overrides over defaults key by key. Either argument may be
// nil. Neither input is modified.
func Merge(defaults, overrides Settings) Settings {
	out := make(Settings, len(defaults)+len(overrides))
	maps.Copy(out, defaults)
	maps.Copy(out, overrides)
	return out
}

// Values is the typed view of the recognized application keys.
type Values struct {
	HideWindowOnBlur                 bool    `mapstructure:"general.hideWindowOnBlur"`
	AutomaticRescanEnabled           bool    `mapstructure:"searchEngine.automaticRescanEnabled"`
	AutomaticRescanIntervalInSeconds int     `mapstructure:"searchEngine.automaticRescanIntervalInSeconds"`
	Threshold                        float64 `mapstructure:"searchEngine.threshold"`
	RescanOnChange                   bool    `mapstructure:"searchEngine.rescanOnChange"`
}

func (v Values) AutomaticRescanInterval() time.Duration {
	return time.Duration(v.AutomaticRescanIntervalInSeconds) * time.Second
}
