package appsearch

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mgomes/launchr/internal/command"
	"github.com/mgomes/launchr/internal/iconcache"
	"github.com/mgomes/launchr/internal/plugin"
	"github.com/mgomes/launchr/internal/search"
)

const (
	ID   = "MacOsApplicationSearchPlugin"
	Type = "application"

	appSuffix  = ".app"
	icnsSuffix = ".icns"
	mdfindArgs = "kMDItemKind == 'Application'"
)

var DefaultFolders = []string{"/System/Applications/", "/Applications/"}

// Plugin finds installed applications with Spotlight and renders their
// icons to PNG with sips.
type Plugin struct {
	*plugin.Base

	runner    command.Runner
	cache     *iconcache.Cache
	folders   []string
	cacheOpts []iconcache.Option
	logger    *zap.Logger
}

type Option func(*Plugin)

// WithFolders sets the allow-list of application folders.
func WithFolders(folders ...string) Option {
	return func(p *Plugin) {
		if len(folders) > 0 {
			p.folders = folders
		}
	}
}

func WithCacheOptions(opts ...iconcache.Option) Option {
	return func(p *Plugin) {
		p.cacheOpts = append(p.cacheOpts, opts...)
	}
}

func New(execCtx plugin.ExecutionContext, runner command.Runner, logger *zap.Logger, opts ...Option) *Plugin {
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Plugin{
		runner:  runner,
		folders: DefaultFolders,
		logger:  logger.With(zap.String("plugin", ID)),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.folders = normalizeFolders(p.folders)

	cacheOpts := append([]iconcache.Option{iconcache.WithLogger(logger)}, p.cacheOpts...)
	p.cache = iconcache.New(execCtx.UserDataPath, ID, cacheOpts...)
	p.Base = plugin.NewBase(ID, execCtx, p.discover, logger)
	return p
}

func (p *Plugin) Folders() []string {
	return append([]string(nil), p.folders...)
}

func (p *Plugin) WatchRoots() []string {
	return p.Folders()
}

// WatchesPath matches application bundles.
func (p *Plugin) WatchesPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), appSuffix)
}

func (p *Plugin) IconPath(appPath string) string {
	return p.cache.Path(appPath)
}

func (p *Plugin) discover(ctx context.Context) ([]search.Searchable, error) {
	paths, err := p.applicationPaths(ctx)
	if err != nil {
		return nil, err
	}

	jobs := make([]iconcache.Job, len(paths))
	for i, path := range paths {
		jobs[i] = iconcache.Job{SourceKey: path, Generate: p.iconGenerator(path)}
	}
	errs := p.cache.EnsureAll(ctx, jobs)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := make([]search.Searchable, len(paths))
	failed := 0
	for i, path := range paths {
		icon := search.FileIcon(p.cache.Path(path))
		if errs[i] != nil {
			icon = search.DummyIcon()
			failed++
		}
		items[i] = search.Item{
			ItemID:     path,
			ItemName:   strings.TrimSuffix(filepath.Base(path), appSuffix),
			ItemIcon:   icon,
			ItemType:   Type,
			ItemAction: search.OpenAction(path),
		}
	}

	if failed > 0 {
		p.logger.Warn("using default icons", zap.Int("failed", failed), zap.Int("applications", len(paths)))
	}
	return items, nil
}

func (p *Plugin) applicationPaths(ctx context.Context) ([]string, error) {
	out, err := p.runner.Output(ctx, "mdfind", mdfindArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return filterPaths(out, p.folders), nil
}

// iconGenerator reads the bundle's icon file name from Info.plist and
// converts the .icns to PNG at dst.
func (p *Plugin) iconGenerator(appPath string) iconcache.FileGenerator {
	return func(ctx context.Context, dst string) error {
		plist := filepath.Join(appPath, "Contents", "Info.plist")
		name, err := p.runner.Output(ctx, "defaults", "read", plist, "CFBundleIconFile")
		if err != nil {
			return fmt.Errorf("failed to read icon name: %w", err)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("no CFBundleIconFile in %s", plist)
		}

		icns := filepath.Join(appPath, "Contents", "Resources", name)
		if !strings.HasSuffix(icns, icnsSuffix) {
			icns += icnsSuffix
		}

		if err := p.runner.Run(ctx, "sips", "-s", "format", "png", icns, "-o", dst); err != nil {
			return fmt.Errorf("failed to convert icon: %w", err)
		}
		return nil
	}
}

// filterPaths keeps cleaned, unique paths under one of folders.
func filterPaths(out string, folders []string) []string {
	seen := make(map[string]bool)
	var paths []string

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		path := strings.TrimSpace(scanner.Text())
		if path == "" {
			continue
		}
		path = filepath.Clean(path)
		if path == "." || path == ".." || seen[path] {
			continue
		}
		if !underAny(path, folders) {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	return paths
}

func underAny(path string, folders []string) bool {
	for _, folder := range folders {
		if strings.HasPrefix(path, folder) {
			return true
		}
	}
	return false
}

func normalizeFolders(folders []string) []string {
	out := make([]string, 0, len(folders))
	for _, f := range folders {
		f = filepath.Clean(f)
		if !strings.HasSuffix(f, string(filepath.Separator)) {
			f += string(filepath.Separator)
		}
		out = append(out, f)
	}
	return out
}
