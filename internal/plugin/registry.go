package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mgomes/launchr/internal/events"
	"github.com/mgomes/launchr/internal/search"
	"github.com/mgomes/launchr/internal/settings"
)

// SettingsSource supplies the effective settings used to decide which
// plugins are enabled.
type SettingsSource interface {
	EffectiveSettings() settings.Settings
}

// PassResult describes one executed rescan pass.
type PassResult struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	FailedPlugins []string
}

// Registry owns the plugins and drives their rescans.
type Registry struct {
	source  SettingsSource
	emitter events.Emitter
	logger  *zap.Logger

	mu      sync.RWMutex
	plugins []Plugin

	passMu  sync.Mutex
	running bool
	pending bool
}

func NewRegistry(source SettingsSource, emitter events.Emitter, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		source:  source,
		emitter: emitter,
		logger:  logger,
	}
}

func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.ID() == p.ID() {
			return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.ID())
		}
	}
	r.plugins = append(r.plugins, p)
	return nil
}

// Plugins returns every registered plugin, enabled or not, in registration
// order.
func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Plugin(nil), r.plugins...)
}

// EnabledPlugins re-reads the settings on every call. A plugin without an
// enabled key is enabled.
func (r *Registry) EnabledPlugins() []Plugin {
	all := r.Plugins()
	if r.source == nil {
		return all
	}

	effective := r.source.EffectiveSettings()
	enabled := all[:0]
	for _, p := range all {
		if on, ok := effective[settings.PluginEnabledKey(p.ID())].(bool); ok && !on {
			continue
		}
		enabled = append(enabled, p)
	}
	return enabled
}

// Aggregate concatenates the searchables of every enabled plugin.
func (r *Registry) Aggregate() []search.Searchable {
	var out []search.Searchable
	for _, p := range r.EnabledPlugins() {
		out = append(out, p.AllSearchables()...)
	}
	return out
}

// RescanAll rescans every enabled plugin concurrently. If a pass is already
// running the call only marks one trailing pass and returns ok=false; all
// such calls made during a pass collapse into that single trailing pass.
// Otherwise it runs until no trailing pass is pending and returns the last
// pass executed.
func (r *Registry) RescanAll(ctx context.Context) (result PassResult, ok bool) {
	r.passMu.Lock()
	if r.running {
		r.pending = true
		r.passMu.Unlock()
		r.logger.Debug("rescan already running, queued a trailing pass")
		return PassResult{}, false
	}
	r.running = true
	r.passMu.Unlock()

	for {
		result = r.pass(ctx)

		r.passMu.Lock()
		if !r.pending || ctx.Err() != nil {
			r.running = false
			r.pending = false
			r.passMu.Unlock()
			return result, true
		}
		r.pending = false
		r.passMu.Unlock()
	}
}

func (r *Registry) pass(ctx context.Context) PassResult {
	result := PassResult{StartedAt: time.Now()}
	r.emit(events.Event{Name: events.RescanStarted, At: result.StartedAt})

	plugins := r.EnabledPlugins()
	errs := make([]error, len(plugins))

	var g errgroup.Group
	for i, p := range plugins {
		g.Go(func() error {
			errs[i] = r.rescanOne(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			result.FailedPlugins = append(result.FailedPlugins, plugins[i].ID())
		}
	}
	result.FinishedAt = time.Now()

	r.logger.Info("rescan finished",
		zap.Int("plugins", len(plugins)),
		zap.Strings("failed", result.FailedPlugins),
		zap.Duration("took", result.FinishedAt.Sub(result.StartedAt)))

	r.emit(events.Event{
		Name:          events.RescanFinished,
		At:            result.FinishedAt,
		FailedPlugins: result.FailedPlugins,
	})
	return result
}

func (r *Registry) rescanOne(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &RescanError{PluginID: p.ID(), Err: fmt.Errorf("panic: %v", v)}
			r.logger.Error("plugin panicked during rescan", zap.String("plugin", p.ID()), zap.Any("panic", v))
		}
	}()

	err = p.Rescan(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRescanInProgress):
		r.logger.Debug("plugin rescan already in progress", zap.String("plugin", p.ID()))
		return nil
	default:
		r.logger.Error("plugin rescan failed, keeping previous results",
			zap.String("plugin", p.ID()), zap.Error(err))
		return err
	}
}

func (r *Registry) emit(ev events.Event) {
	if r.emitter != nil {
		r.emitter.Emit(ev)
	}
}
