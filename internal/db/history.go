package db

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mgomes/launchr/internal/events"
)

// RecordHistory stores one RescanRecord per finished pass read from ch and
// returns once ch is closed and drained. Writes are not canceled with ctx.
func (db *DB) RecordHistory(ctx context.Context, ch <-chan events.Event, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx = context.WithoutCancel(ctx)

	var started time.Time
	for ev := range ch {
		switch ev.Name {
		case events.RescanStarted:
			started = ev.At
		case events.RescanFinished:
			if started.IsZero() {
				started = ev.At
			}
			rec := RescanRecord{StartedAt: started, FinishedAt: ev.At, FailedPlugins: ev.FailedPlugins}
			if _, err := db.RecordRescan(ctx, rec); err != nil {
				logger.Warn("failed to record rescan", zap.Error(err))
			}
			started = time.Time{}
		}
	}
}
