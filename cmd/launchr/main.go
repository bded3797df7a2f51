package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mgomes/launchr/internal/command"
	"github.com/mgomes/launchr/internal/config"
	"github.com/mgomes/launchr/internal/db"
	"github.com/mgomes/launchr/internal/events"
	"github.com/mgomes/launchr/internal/iconcache"
	"github.com/mgomes/launchr/internal/plugin"
	"github.com/mgomes/launchr/internal/plugins/appsearch"
	"github.com/mgomes/launchr/internal/plugins/customentries"
	"github.com/mgomes/launchr/internal/search"
	"github.com/mgomes/launchr/internal/settings"
	"github.com/mgomes/launchr/internal/tui"
)

func main() {
	query := flag.String("q", "", "rescan and print results for a query")
	doRescan := flag.Bool("rescan", false, "rescan all enabled plugins once")
	doWatch := flag.Bool("watch", false, "keep rescanning on schedule and on folder changes")
	setKV := flag.String("set", "", "override a setting, e.g. -set searchEngine.threshold=0.4")
	doReset := flag.Bool("reset", false, "clear all setting overrides")
	doSettings := flag.Bool("settings", false, "print effective settings")
	doStatus := flag.Bool("status", false, "print the last rescan")
	doConfigure := flag.Bool("configure", false, "edit search settings interactively")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	interactive := *doConfigure || flag.NFlag() == 0
	logger, err := newLogger(cfg.LogLevel, interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	a, err := newApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *setKV != "":
		err = runSet(ctx, a, *setKV)
	case *doReset:
		err = a.manager.UpdateSettings(ctx, settings.Settings{})
		if err == nil {
			fmt.Println("Settings reset to defaults")
		}
	case *doSettings:
		runSettings(a)
	case *doStatus:
		err = runStatus(a)
	case *doRescan:
		runRescan(ctx, a)
	case *query != "":
		runQuery(ctx, a, *query)
	case *doWatch:
		err = runWatch(ctx, a)
	case *doConfigure:
		err = runConfigure(ctx, a)
	default:
		err = runTUI(ctx, a)
	}
	a.close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger writes to the log file in interactive mode so the terminal UI
// stays intact.
func newLogger(level string, toFile bool) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	zc.Level = lvl
	zc.Encoding = "console"
	zc.Sampling = nil
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	if toFile {
		path, err := config.LogPath()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, err
		}
		zc.OutputPaths = []string{path}
		zc.ErrorOutputPaths = []string{path}
	}

	return zc.Build()
}

type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *db.DB
	manager  *settings.Manager
	registry *plugin.Registry
	bus      *events.Bus
	index    *search.Index
	runner   *command.OSRunner
	execCtx  plugin.ExecutionContext
	values   atomic.Pointer[settings.Values]

	unsubscribe func()
	recorded    chan struct{}
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	dbPath, err := config.DBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create config folder: %w", err)
	}

	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		db:      database,
		bus:     events.NewBus(events.DefaultBuffer, logger),
		runner:  command.NewOSRunner(cfg.CommandTimeout(), logger),
		execCtx: plugin.NewExecutionContext(cfg.UserDataDir),
	}

	apps := appsearch.New(a.execCtx, a.runner, logger,
		appsearch.WithFolders(cfg.ApplicationFolders...),
		appsearch.WithCacheOptions(
			iconcache.WithParallelism(cfg.IconParallelism),
			iconcache.WithIconSize(cfg.IconScale()),
		),
	)
	entries := customentries.New(a.execCtx, cfg.CustomEntriesPath, logger,
		customentries.WithPathSource(func() string {
			return customentries.PathFromSettings(a.manager.EffectiveSettings())
		}),
	)
	plugins := []plugin.Plugin{apps, entries}

	defaults := plugin.DefaultSettings(settings.ApplicationDefaults(), plugins...)
	a.manager = settings.NewManager(database, defaults, logger)
	a.registry = plugin.NewRegistry(a.manager, a.bus, logger)
	for _, p := range plugins {
		if err := a.registry.Register(p); err != nil {
			database.Close() //nolint:errcheck
			return nil, err
		}
	}
	a.index = search.NewIndex(a.registry.Aggregate, search.FuzzyScorer{})

	v := a.manager.Values()
	a.values.Store(&v)
	a.manager.OnChange(func(s settings.Settings) {
		v := a.manager.ValuesOf(s)
		a.values.Store(&v)
	})

	ch, unsubscribe := a.bus.Subscribe()
	a.unsubscribe = unsubscribe
	a.recorded = make(chan struct{})
	go func() {
		defer close(a.recorded)
		database.RecordHistory(context.Background(), ch, logger)
	}()

	return a, nil
}

// close drains pending history events before closing the database.
func (a *app) close() {
	a.unsubscribe()
	<-a.recorded
	a.db.Close() //nolint:errcheck
}

func (a *app) threshold() float64 {
	return a.values.Load().Threshold
}

func (a *app) rescan(ctx context.Context) {
	a.registry.RescanAll(ctx)
}

// startBackground runs the scheduler, and the watcher when enabled. The
// returned func stops both.
func (a *app) startBackground(ctx context.Context) func() {
	scheduler := plugin.NewScheduler(a.rescan, a.logger)
	scheduler.Start(ctx, *a.values.Load())
	a.manager.OnChange(func(s settings.Settings) {
		scheduler.Apply(a.manager.ValuesOf(s))
	})

	var watcher *plugin.Watcher
	if a.values.Load().RescanOnChange {
		w, err := plugin.NewWatcher(a.rescan, a.logger)
		if err != nil {
			a.logger.Warn("file watching unavailable", zap.Error(err))
		} else {
			w.WatchPlugins(a.registry.EnabledPlugins())
			w.Start(ctx)
			watcher = w
		}
	}

	return func() {
		if watcher != nil {
			watcher.Stop()
		}
		scheduler.Stop()
	}
}

func runSet(ctx context.Context, a *app, kv string) error {
	key, raw, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", kv)
	}
	if _, known := a.manager.Defaults()[key]; !known {
		return fmt.Errorf("unknown setting %q", key)
	}

	overrides := a.manager.Overrides()
	overrides[key] = parseValue(raw)

	if _, err := settings.Decode(settings.Merge(a.manager.Defaults(), overrides)); err != nil {
		return err
	}
	if err := a.manager.UpdateSettings(ctx, overrides); err != nil {
		return err
	}

	fmt.Printf("%s = %v\n", key, overrides[key])
	return nil
}

// parseValue accepts JSON literals and treats anything else as a string.
func parseValue(raw string) any {
	raw = strings.TrimSpace(raw)
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func runSettings(a *app) {
	effective := a.manager.EffectiveSettings()
	overrides := a.manager.Overrides()

	keys := make([]string, 0, len(effective))
	for k := range effective {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		marker := " "
		if _, ok := overrides[k]; ok {
			marker = "*"
		}
		fmt.Printf("%s %s = %v\n", marker, k, effective[k])
	}
	fmt.Println()
	fmt.Println("* overridden")
}

func runStatus(a *app) error {
	last, err := a.db.LastRescan()
	if err != nil {
		return fmt.Errorf("failed to read rescan history: %w", err)
	}
	if last == nil {
		fmt.Println("No rescans recorded yet. Run: launchr -rescan")
		return nil
	}

	count, _ := a.db.RescanCount()
	fmt.Printf("Last rescan: %s (took %s)\n",
		last.FinishedAt.Format(time.RFC1123), last.FinishedAt.Sub(last.StartedAt).Round(time.Millisecond))
	if len(last.FailedPlugins) > 0 {
		fmt.Printf("Failed plugins: %s\n", strings.Join(last.FailedPlugins, ", "))
	}
	fmt.Printf("Rescans recorded: %d\n", count)
	return nil
}

func runRescan(ctx context.Context, a *app) {
	result, _ := a.registry.RescanAll(ctx)

	failed := make(map[string]bool, len(result.FailedPlugins))
	for _, id := range result.FailedPlugins {
		failed[id] = true
	}

	for _, p := range a.registry.EnabledPlugins() {
		status := "ok"
		if failed[p.ID()] {
			status = "failed, kept previous results"
		}
		fmt.Printf("%-32s %5d items  %s\n", p.ID(), len(p.AllSearchables()), status)
	}
	fmt.Printf("Rescan complete in %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
}

func runQuery(ctx context.Context, a *app, query string) {
	a.registry.RescanAll(ctx)

	results := a.index.Query(query, a.threshold(), search.DefaultLimit)
	if len(results) == 0 {
		fmt.Println("No results found")
		return
	}
	for _, r := range results {
		fmt.Printf("%2d. [%.2f] %-30s %s\n", r.Rank, r.Score, r.Item.Name(), r.Item.ID())
	}
}

func runWatch(ctx context.Context, a *app) error {
	a.registry.RescanAll(ctx)

	stop := a.startBackground(ctx)
	defer stop()

	fmt.Println("Watching for changes, press Ctrl+C to stop...")
	<-ctx.Done()
	fmt.Println("\nStopping...")
	return nil
}

func runTUI(ctx context.Context, a *app) error {
	ch, unsubscribe := a.bus.Subscribe()
	defer unsubscribe()

	stop := a.startBackground(ctx)
	defer stop()

	go a.rescan(ctx)

	model := tui.NewSearchModel("", tui.Options{
		Index:         a.index,
		Threshold:     a.threshold,
		Runner:        a.runner,
		Platform:      a.execCtx.Platform,
		Events:        ch,
		Rescan:        func() { a.rescan(ctx) },
		QuitAfterOpen: a.values.Load().HideWindowOnBlur,
	})

	_, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func runConfigure(ctx context.Context, a *app) error {
	program := tea.NewProgram(newSettingsRunner(*a.values.Load()))

	finalModel, err := program.Run()
	if err != nil {
		return err
	}

	runner, ok := finalModel.(settingsRunner)
	if !ok || runner.submitted == nil {
		return fmt.Errorf("configuration cancelled")
	}

	msg := runner.submitted
	overrides := a.manager.Overrides()
	overrides[settings.KeyThreshold] = msg.Threshold
	overrides[settings.KeyAutomaticRescanEnabled] = msg.AutomaticRescan
	if msg.AutomaticRescan {
		overrides[settings.KeyAutomaticRescanIntervalInSeconds] = msg.IntervalSeconds
	}

	if err := a.manager.UpdateSettings(ctx, overrides); err != nil {
		return err
	}
	fmt.Println("Settings saved")
	return nil
}

type settingsRunner struct {
	form      tui.SettingsModel
	submitted *tui.SettingsSubmitMsg
}

func newSettingsRunner(current settings.Values) settingsRunner {
	return settingsRunner{form: tui.NewSettingsModel(current)}
}

func (m settingsRunner) Init() tea.Cmd {
	return tea.Batch(m.form.Init(), tea.EnableBracketedPaste)
}

func (m settingsRunner) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tui.SettingsSubmitMsg:
		m.submitted = &msg
		return m, tea.Quit

	default:
		newModel, cmd := m.form.Update(msg)
		if sm, ok := newModel.(tui.SettingsModel); ok {
			m.form = sm
		}
		return m, cmd
	}
}

func (m settingsRunner) View() string {
	return m.form.View()
}
