package plugin

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mgomes/launchr/internal/settings"
)

// Scheduler triggers automatic rescans on a fixed interval taken from the
// settings. It keeps at most one cron entry.
type Scheduler struct {
	rescan func(ctx context.Context)
	cron   *cron.Cron
	logger *zap.Logger

	mu       sync.Mutex
	ctx      context.Context
	started  bool
	entry    cron.EntryID
	enabled  bool
	interval time.Duration
}

func NewScheduler(rescan func(ctx context.Context), logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "scheduler"))
	cl := cronLogger{logger.Sugar()}

	return &Scheduler{
		rescan: rescan,
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger: logger,
		ctx:    context.Background(),
	}
}

// Start begins running the cron loop and applies v. Calling it again only
// re-applies v.
func (s *Scheduler) Start(ctx context.Context, v settings.Values) {
	s.mu.Lock()
	if !s.started {
		s.ctx = ctx
		s.cron.Start()
		s.started = true
	}
	s.mu.Unlock()

	s.Apply(v)
}

// Apply replaces the timer when the enabled flag or interval changed and
// leaves it alone otherwise.
func (s *Scheduler) Apply(v settings.Values) {
	enabled := v.AutomaticRescanEnabled
	interval := v.AutomaticRescanInterval()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry != 0 && enabled == s.enabled && interval == s.interval {
		return
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}

	s.enabled = enabled
	s.interval = interval

	if !enabled {
		s.logger.Info("automatic rescans disabled")
		return
	}

	ctx := s.ctx
	s.entry = s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		s.rescan(ctx)
	}))
	s.logger.Info("automatic rescans scheduled", zap.Duration("interval", interval))
}

// Stop halts the cron loop and waits for a running rescan to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()

	if started {
		<-s.cron.Stop().Done()
	}
}

// Entries reports how many timers are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	id := s.entry
	s.mu.Unlock()

	if id == 0 {
		return time.Time{}, false
	}
	e := s.cron.Entry(id)
	return e.Next, e.Valid()
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
