package customentries

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mgomes/launchr/internal/plugin"
	"github.com/mgomes/launchr/internal/search"
	"github.com/mgomes/launchr/internal/settings"
)

const sampleEntries = `entries:
  - id: github
    name: GitHub
    icon: data:image/png;base64,iVBORw0KGgo=
    open: https://github.com
  - id: hello
    name: Say Hello
    icon: "<svg xmlns='http://www.w3.org/2000/svg'/>"
    command: [say, hello, world]
  - id: notes
    name: Notes Folder
    icon: notes.png
    open: ~/Notes
`

func setupPlugin(t *testing.T, content string) (*Plugin, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "entries.yaml")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return New(plugin.NewExecutionContext(t.TempDir()), path, nil), dir
}

func TestRescan_LoadsEntries(t *testing.T) {
	p, dir := setupPlugin(t, sampleEntries)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.png"), []byte("png"), 0644))

	require.NoError(t, p.Rescan(context.Background()))
	items := p.AllSearchables()
	require.Len(t, items, 3)

	assert.Equal(t, "github", items[0].ID())
	assert.Equal(t, search.IconDataURL, items[0].Icon().Kind())
	assert.Equal(t, search.OpenAction("https://github.com"), items[0].Action())
	assert.Equal(t, Type, items[0].Type())

	assert.Equal(t, search.IconSvg, items[1].Icon().Kind())
	assert.Equal(t, search.CommandAction("say", "hello", "world"), items[1].Action())

	assert.Equal(t, search.FileIcon(filepath.Join(dir, "notes.png")), items[2].Icon())
}

func TestRescan_MissingFileIsEmpty(t *testing.T) {
	p, _ := setupPlugin(t, "")
	require.NoError(t, p.Rescan(context.Background()))
	assert.Empty(t, p.AllSearchables())
}

func TestRescan_InvalidFileKeepsPreviousList(t *testing.T) {
	p, _ := setupPlugin(t, sampleEntries)
	require.NoError(t, p.Rescan(context.Background()))
	before := p.AllSearchables()

	require.NoError(t, os.WriteFile(p.Path(), []byte("entries: [\n"), 0644))
	err := p.Rescan(context.Background())

	var rescanErr *plugin.RescanError
	require.ErrorAs(t, err, &rescanErr)
	assert.Equal(t, ID, rescanErr.PluginID)
	assert.Equal(t, before, p.AllSearchables())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing id",
			content: "entries:\n  - name: X\n    open: /tmp\n",
			wantErr: "id is required",
		},
		{
			name:    "missing name",
			content: "entries:\n  - id: x\n    open: /tmp\n",
			wantErr: "name is required",
		},
		{
			name:    "no action",
			content: "entries:\n  - id: x\n    name: X\n",
			wantErr: "one of open or command is required",
		},
		{
			name:    "both actions",
			content: "entries:\n  - id: x\n    name: X\n    open: /tmp\n    command: [ls]\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "duplicate id",
			content: "entries:\n  - id: x\n    name: X\n    open: /a\n  - id: ' x '\n    name: Y\n    open: /b\n",
			wantErr: "duplicate id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "entries.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func writeEntries(t *testing.T, path string, entries []Entry) {
	t.Helper()
	data, err := yaml.Marshal(entriesFile{Entries: entries})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestWrittenEntriesLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "entries.yaml")
	entries := []Entry{
		{ID: "a", Name: "A", Open: "/tmp"},
		{ID: "b", Name: "B", Command: []string{"echo", "b"}},
	}
	writeEntries(t, path, entries)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestInferIcon(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "icon.png"), []byte("png"), 0644))

	tests := []struct {
		icon string
		want search.IconKind
	}{
		{"", search.IconDummy},
		{"data:image/svg+xml;base64,PHN2Zy8+", search.IconDataURL},
		{"<SVG></SVG>", search.IconSvg},
		{"icon.png", search.IconFilePath},
		{filepath.Join(dir, "icon.png"), search.IconFilePath},
		{"aGVsbG8=", search.IconBase64Image},
		{"missing.png", search.IconDummy},
	}

	for _, tt := range tests {
		t.Run(tt.icon, func(t *testing.T) {
			assert.Equal(t, tt.want, inferIcon(tt.icon, dir).Kind())
		})
	}
}

func TestPathSource(t *testing.T) {
	p, dir := setupPlugin(t, "")
	assert.Equal(t, []string{dir}, p.WatchRoots())
	assert.True(t, p.WatchesPath(filepath.Join(dir, "entries.yaml")))
	assert.False(t, p.WatchesPath(filepath.Join(dir, "launchr.db-wal")))
	assert.False(t, p.WatchesPath(filepath.Join(dir, "launchr.log")))

	other := filepath.Join(t.TempDir(), "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte("entries:\n  - id: o\n    name: Other\n    open: /tmp\n"), 0644))

	current := other
	p = New(plugin.NewExecutionContext(t.TempDir()), filepath.Join(dir, "entries.yaml"), nil,
		WithPathSource(func() string { return current }))
	require.NoError(t, p.Rescan(context.Background()))
	require.Len(t, p.AllSearchables(), 1)

	current = ""
	assert.Equal(t, filepath.Join(dir, "entries.yaml"), p.Path())
}

func TestSettings(t *testing.T) {
	p, _ := setupPlugin(t, "")
	defaults := plugin.DefaultSettings(settings.ApplicationDefaults(), p)

	assert.Equal(t, true, defaults[settings.PluginEnabledKey(ID)])
	assert.Equal(t, p.Path(), PathFromSettings(defaults))
	assert.Empty(t, PathFromSettings(settings.Settings{}))
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	assert.Equal(t, "/home/tester/entries.yaml", expandHome("~/entries.yaml"))
	assert.Equal(t, "/etc/x", expandHome("/etc/x"))
}
