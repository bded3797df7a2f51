package settings

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Repository persists the user override layer.
type Repository interface {
	// ReadSettings returns nil when nothing has been persisted yet.
	ReadSettings() (Settings, error)
	// WriteSettings replaces the persisted override layer with s.
	WriteSettings(ctx context.Context, s Settings) error
}

// Manager computes effective settings from compiled-in defaults and the
// persisted overrides.
type Manager struct {
	repo     Repository
	defaults Settings
	logger   *zap.Logger

	mu          sync.Mutex
	subscribers []func(Settings)
}

func NewManager(repo Repository, defaults Settings, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		repo:     repo,
		defaults: defaults.Clone(),
		logger:   logger.Named("settings"),
	}
}

func (m *Manager) Defaults() Settings {
	return m.defaults.Clone()
}

// Overrides returns a copy of the persisted override layer. Read failures
// are logged and yield an empty layer.
func (m *Manager) Overrides() Settings {
	if m.repo == nil {
		return Settings{}
	}
	overrides, err := m.repo.ReadSettings()
	if err != nil {
		m.logger.Error("settings repository failed, using defaults", zap.Error(&ReadError{Err: err}))
		return Settings{}
	}
	return overrides.Clone()
}

// EffectiveSettings never fails: with no readable overrides it returns
// exactly the defaults.
func (m *Manager) EffectiveSettings() Settings {
	return Merge(m.defaults, m.Overrides())
}

// Values returns the typed view of the effective settings. Overrides of the
// wrong type or out of range are logged and replaced by their default.
func (m *Manager) Values() Values {
	return m.valuesOf(m.EffectiveSettings())
}

func (m *Manager) valuesOf(effective Settings) Values {
	def, err := Decode(m.defaults)
	if err != nil {
		// Compiled-in defaults are broken; nothing sane to fall back to.
		m.logger.DPanic("default settings do not decode", zap.Error(err))
	}

	v, err := Decode(effective)
	if err != nil {
		v, err = Decode(m.dropMalformed(effective))
		if err != nil {
			m.logger.Warn("ignoring malformed settings overrides", zap.Error(err))
			return def
		}
	}
	if err := v.Validate(); err != nil {
		m.logger.Warn("replacing invalid settings with defaults", zap.Error(err))
		v = sanitize(v, def)
	}
	return v
}

// dropMalformed returns effective with every key that fails to decode on its
// own reset to its default.
func (m *Manager) dropMalformed(effective Settings) Settings {
	out := effective.Clone()
	for key, value := range effective {
		if _, err := Decode(Merge(m.defaults, Settings{key: value})); err == nil {
			continue
		}
		m.logger.Warn("ignoring malformed setting", zap.String("key", key), zap.Any("value", value))
		if d, ok := m.defaults[key]; ok {
			out[key] = d
		} else {
			delete(out, key)
		}
	}
	return out
}

// Bool returns the effective boolean for key, or fallback when the key is
// missing or not a boolean.
func (m *Manager) Bool(key string, fallback bool) bool {
	raw, ok := m.EffectiveSettings()[key]
	if !ok {
		m.logger.Warn("setting has no default", zap.String("key", key), zap.Bool("fallback", fallback))
		return fallback
	}
	b, ok := raw.(bool)
	if !ok {
		m.logger.Warn("setting is not a boolean", zap.String("key", key), zap.Any("value", raw))
		return fallback
	}
	return b
}

// UpdateSettings persists s verbatim as the new override layer. It does not
// merge with what was persisted before; callers that want incremental
// updates read Overrides first. Subscribers are notified only on success.
func (m *Manager) UpdateSettings(ctx context.Context, s Settings) error {
	if m.repo == nil {
		return &WriteError{Err: errNoRepository}
	}
	if err := m.repo.WriteSettings(ctx, s.Clone()); err != nil {
		return &WriteError{Err: err}
	}

	m.mu.Lock()
	subs := append([]func(Settings){}, m.subscribers...)
	m.mu.Unlock()

	if len(subs) == 0 {
		return nil
	}
	effective := m.EffectiveSettings()
	for _, fn := range subs {
		fn(effective.Clone())
	}
	return nil
}

// OnChange registers fn to receive the effective settings after every
// successful update.
func (m *Manager) OnChange(fn func(Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// ValuesOf exposes the typed decoding for an already merged map, e.g. the
// one handed to OnChange subscribers.
func (m *Manager) ValuesOf(effective Settings) Values {
	return m.valuesOf(effective)
}
