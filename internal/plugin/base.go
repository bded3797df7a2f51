package plugin

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mgomes/launchr/internal/search"
)

// DiscoverFunc performs a full rediscovery. A non-nil error means the result
// is discarded.
type DiscoverFunc func(ctx context.Context) ([]search.Searchable, error)

// Base implements the rescan bookkeeping shared by all plugins: one rescan
// at a time per instance, and an all-or-nothing swap of the list.
type Base struct {
	id       string
	execCtx  ExecutionContext
	discover DiscoverFunc
	logger   *zap.Logger

	items   atomic.Pointer[[]search.Searchable]
	running sync.Mutex
}

func NewBase(id string, execCtx ExecutionContext, discover DiscoverFunc, logger *zap.Logger) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Base{
		id:       id,
		execCtx:  execCtx,
		discover: discover,
		logger:   logger.With(zap.String("plugin", id)),
	}
}

func (b *Base) ID() string {
	return b.id
}

func (b *Base) ExecutionContext() ExecutionContext {
	return b.execCtx
}

func (b *Base) Folder() string {
	return b.execCtx.PluginFolder(b.id)
}

func (b *Base) Logger() *zap.Logger {
	return b.logger
}

func (b *Base) AllSearchables() []search.Searchable {
	p := b.items.Load()
	if p == nil {
		return nil
	}
	return slices.Clone(*p)
}

// Rescan returns ErrRescanInProgress when another rescan of this instance is
// still running.
func (b *Base) Rescan(ctx context.Context) error {
	if !b.running.TryLock() {
		return ErrRescanInProgress
	}
	defer b.running.Unlock()

	start := time.Now()

	if err := ensureFolder(b.Folder()); err != nil {
		return &RescanError{PluginID: b.id, Err: err}
	}

	items, err := b.discover(ctx)
	if err != nil {
		return &RescanError{PluginID: b.id, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &RescanError{PluginID: b.id, Err: err}
	}

	items = slices.Clip(items)
	b.items.Store(&items)

	b.logger.Info("rescan complete",
		zap.Int("searchables", len(items)),
		zap.Duration("took", time.Since(start)))
	return nil
}
