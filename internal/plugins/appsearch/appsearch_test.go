package appsearch

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgomes/launchr/internal/command"
	"github.com/mgomes/launchr/internal/iconcache"
	"github.com/mgomes/launchr/internal/plugin"
	"github.com/mgomes/launchr/internal/search"
)

// fakeRunner answers mdfind and defaults from canned output and emulates
// sips by writing a file to its -o argument.
type fakeRunner struct {
	mu        sync.Mutex
	outputs   map[string]string
	failures  map[string]error
	converted []string
}

func newFakeRunner(mdfind string) *fakeRunner {
	return &fakeRunner{
		outputs:  map[string]string{"mdfind " + mdfindArgs: mdfind},
		failures: make(map[string]error),
	}
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) (string, error) {
	key := name + " " + strings.Join(args, " ")
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failures[key]; ok {
		return "", err
	}
	if out, ok := f.outputs[key]; ok {
		return out, nil
	}
	if name == "defaults" {
		return "AppIcon\n", nil
	}
	return "", &command.CommandError{Cmd: key, Stage: command.StageWait, ExitCode: 1}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	if name != "sips" || len(args) != 6 {
		return errors.New("unexpected command " + name)
	}
	icns, dst := args[3], args[5]

	f.mu.Lock()
	err, failed := f.failures["sips "+icns]
	f.converted = append(f.converted, icns)
	f.mu.Unlock()

	if failed {
		return err
	}
	return os.WriteFile(dst, []byte("png:"+icns), 0644)
}

func (f *fakeRunner) Start(_ context.Context, name string, _ ...string) error {
	return errors.New("unexpected launch of " + name)
}

func (f *fakeRunner) conversions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.converted...)
}

func setupPlugin(t *testing.T, runner command.Runner) (*Plugin, string) {
	t.Helper()
	dataDir := t.TempDir()
	p := New(plugin.NewExecutionContext(dataDir), runner, nil, WithCacheOptions(iconcache.WithIconSize(0)))
	return p, dataDir
}

func byID(items []search.Searchable) map[string]search.Searchable {
	out := make(map[string]search.Searchable, len(items))
	for _, it := range items {
		out[it.ID()] = it
	}
	return out
}

func TestRescan_IconFailureFallsBackToDummy(t *testing.T) {
	runner := newFakeRunner("/Applications/A.app\n/Applications/B.app\n")
	runner.failures["sips /Applications/A.app/Contents/Resources/AppIcon.icns"] = errors.New("sips: tool error")

	p, dataDir := setupPlugin(t, runner)
	require.NoError(t, p.Rescan(context.Background()))

	items := byID(p.AllSearchables())
	require.Len(t, items, 2)

	a := items["/Applications/A.app"]
	assert.True(t, a.Icon().IsDummy())
	assert.Equal(t, "A", a.Name())

	b := items["/Applications/B.app"]
	assert.Equal(t, search.IconFilePath, b.Icon().Kind())
	assert.Equal(t, iconcache.ResolveIconPath(dataDir, ID, "/Applications/B.app"), b.Icon().Payload())
	assert.FileExists(t, b.Icon().Payload())
	assert.Equal(t, Type, b.Type())
	assert.Equal(t, search.OpenAction("/Applications/B.app"), b.Action())
}

func TestRescan_FiltersCandidatePaths(t *testing.T) {
	runner := newFakeRunner(strings.Join([]string{
		"/Applications/Safari.app",
		"/System/Applications/Mail.app",
		"  /Applications/Safari.app  ",
		"/Applications//Notes.app",
		"/Users/me/Downloads/Installer.app",
		"/ApplicationsExtra/Fake.app",
		".",
		"..",
		"",
	}, "\n"))

	p, _ := setupPlugin(t, runner)
	require.NoError(t, p.Rescan(context.Background()))

	var ids []string
	for _, it := range p.AllSearchables() {
		ids = append(ids, it.ID())
	}
	assert.Equal(t, []string{
		"/Applications/Safari.app",
		"/System/Applications/Mail.app",
		"/Applications/Notes.app",
	}, ids)
}

func TestRescan_ReusesCachedIcons(t *testing.T) {
	runner := newFakeRunner("/Applications/A.app\n/Applications/B.app\n")
	runner.failures["sips /Applications/A.app/Contents/Resources/AppIcon.icns"] = errors.New("sips: tool error")

	p, _ := setupPlugin(t, runner)
	require.NoError(t, p.Rescan(context.Background()))
	assert.Len(t, runner.conversions(), 2)

	delete(runner.failures, "sips /Applications/A.app/Contents/Resources/AppIcon.icns")
	require.NoError(t, p.Rescan(context.Background()))

	// B was cached, so only A is converted again.
	conversions := runner.conversions()
	require.Len(t, conversions, 3)
	assert.Equal(t, "/Applications/A.app/Contents/Resources/AppIcon.icns", conversions[2])
	assert.False(t, byID(p.AllSearchables())["/Applications/A.app"].Icon().IsDummy())
}

func TestRescan_IconNameWithExtension(t *testing.T) {
	runner := newFakeRunner("/Applications/C.app\n")
	runner.outputs["defaults read /Applications/C.app/Contents/Info.plist CFBundleIconFile"] = "Custom.icns"

	p, _ := setupPlugin(t, runner)
	require.NoError(t, p.Rescan(context.Background()))

	assert.Equal(t, []string{"/Applications/C.app/Contents/Resources/Custom.icns"}, runner.conversions())
}

func TestRescan_MissingIconNameIsDummy(t *testing.T) {
	runner := newFakeRunner("/Applications/D.app\n")
	runner.outputs["defaults read /Applications/D.app/Contents/Info.plist CFBundleIconFile"] = "  \n"

	p, _ := setupPlugin(t, runner)
	require.NoError(t, p.Rescan(context.Background()))

	items := p.AllSearchables()
	require.Len(t, items, 1)
	assert.True(t, items[0].Icon().IsDummy())
	assert.Empty(t, runner.conversions())
}

func TestRescan_DiscoveryFailureKeepsPreviousList(t *testing.T) {
	runner := newFakeRunner("/Applications/A.app\n")
	p, _ := setupPlugin(t, runner)
	require.NoError(t, p.Rescan(context.Background()))
	before := p.AllSearchables()

	runner.mu.Lock()
	runner.failures["mdfind "+mdfindArgs] = &command.CommandError{Cmd: "mdfind", Stage: command.StageStart, Cause: os.ErrNotExist}
	runner.mu.Unlock()

	err := p.Rescan(context.Background())
	var rescanErr *plugin.RescanError
	require.ErrorAs(t, err, &rescanErr)
	assert.Equal(t, ID, rescanErr.PluginID)
	assert.Equal(t, before, p.AllSearchables())
}

func TestNew_Folders(t *testing.T) {
	p := New(plugin.NewExecutionContext(t.TempDir()), newFakeRunner(""), nil, WithFolders("/opt/apps", "/Applications/"))
	assert.Equal(t, []string{"/opt/apps/", "/Applications/"}, p.Folders())
	assert.Equal(t, p.Folders(), p.WatchRoots())
	assert.True(t, p.WatchesPath("/Applications/Safari.app"))
	assert.True(t, p.WatchesPath("/opt/apps/Tool.APP"))
	assert.False(t, p.WatchesPath("/Applications/notes.txt"))
	assert.Equal(t, ID, p.ID())
}

func TestFilterPaths(t *testing.T) {
	got := filterPaths("/opt/apps/X.app\n/opt/appsX/Y.app\n", []string{"/opt/apps/"})
	assert.Equal(t, []string{"/opt/apps/X.app"}, got)
	assert.Empty(t, filterPaths("", DefaultFolders))
}
