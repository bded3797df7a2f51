package customentries

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mgomes/launchr/internal/fsutil"
	"github.com/mgomes/launchr/internal/plugin"
	"github.com/mgomes/launchr/internal/search"
	"github.com/mgomes/launchr/internal/settings"
)

const (
	ID   = "CustomEntriesPlugin"
	Type = "custom"

	// PathOption is the plugin setting holding the entries file.
	PathOption = "path"
)

// Plugin serves entries listed by the user in a YAML file, re-read on every
// rescan.
type Plugin struct {
	*plugin.Base

	defaultPath string
	pathSource  func() string
}

type Option func(*Plugin)

// WithPathSource lets the entries path follow a setting. An empty result
// falls back to the default path.
func WithPathSource(fn func() string) Option {
	return func(p *Plugin) { p.pathSource = fn }
}

func New(execCtx plugin.ExecutionContext, path string, logger *zap.Logger, opts ...Option) *Plugin {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	p := &Plugin{defaultPath: expandHome(path)}
	for _, opt := range opts {
		opt(p)
	}
	p.Base = plugin.NewBase(ID, execCtx, p.discover, logger)
	return p
}

// PathFromSettings reads the path option from effective settings.
func PathFromSettings(s settings.Settings) string {
	v, _ := s[settings.PluginKey(ID, PathOption)].(string)
	return v
}

func (p *Plugin) DefaultSettings() settings.Settings {
	return settings.Settings{PathOption: p.defaultPath}
}

func (p *Plugin) Path() string {
	if p.pathSource != nil {
		if path := strings.TrimSpace(p.pathSource()); path != "" {
			return expandHome(path)
		}
	}
	return p.defaultPath
}

func (p *Plugin) WatchRoots() []string {
	return []string{filepath.Dir(p.Path())}
}

// WatchesPath matches only the entries file. Its folder also holds the
// database and log.
func (p *Plugin) WatchesPath(path string) bool {
	return filepath.Clean(path) == filepath.Clean(p.Path())
}

func (p *Plugin) discover(ctx context.Context) ([]search.Searchable, error) {
	path := p.Path()
	entries, err := Load(path)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	items := make([]search.Searchable, 0, len(entries))
	for _, e := range entries {
		action := search.OpenAction(e.Open)
		if e.Open == "" {
			action = search.CommandAction(e.Command[0], e.Command[1:]...)
		}
		items = append(items, search.Item{
			ItemID:     e.ID,
			ItemName:   e.Name,
			ItemIcon:   inferIcon(e.Icon, base),
			ItemType:   Type,
			ItemAction: action,
		})
	}
	return items, nil
}

// inferIcon picks a descriptor kind from the shape of the icon string.
// Relative file paths resolve against base.
func inferIcon(icon, base string) search.IconDescriptor {
	icon = strings.TrimSpace(icon)
	switch {
	case icon == "":
		return search.DummyIcon()
	case strings.HasPrefix(icon, "data:"):
		return search.DataURLIcon(icon)
	case strings.HasPrefix(strings.ToLower(icon), "<svg"):
		return search.SvgIcon(icon)
	}

	path := expandHome(icon)
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	if fsutil.NonEmptyFile(path) {
		return search.FileIcon(path)
	}

	if data, err := base64.StdEncoding.DecodeString(icon); err == nil && len(data) > 0 {
		return search.Base64Icon(icon)
	}
	return search.DummyIcon()
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
