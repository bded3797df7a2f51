package plugin

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgomes/launchr/internal/search"
	"github.com/mgomes/launchr/internal/settings"
)

func TestBase_EmptyBeforeFirstRescan(t *testing.T) {
	p := newFakePlugin(t, "fake")
	assert.Empty(t, p.AllSearchables())
}

func TestBase_RescanSwapsList(t *testing.T) {
	p := newFakePlugin(t, "fake")

	require.NoError(t, p.Rescan(context.Background()))
	items := p.AllSearchables()
	require.Len(t, items, 2)
	assert.Equal(t, "fake gen 1", items[0].Name())

	require.NoError(t, p.Rescan(context.Background()))
	assert.Equal(t, "fake gen 2", p.AllSearchables()[0].Name())
}

func TestBase_RescanCreatesPluginFolder(t *testing.T) {
	p := newFakePlugin(t, "fake")
	require.NoError(t, p.Rescan(context.Background()))

	info, err := os.Stat(p.Folder())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestBase_FailedRescanKeepsPreviousList(t *testing.T) {
	p := newFakePlugin(t, "fake")
	require.NoError(t, p.Rescan(context.Background()))
	before := p.AllSearchables()

	p.fail.Store(true)
	err := p.Rescan(context.Background())

	var rescanErr *RescanError
	require.ErrorAs(t, err, &rescanErr)
	assert.Equal(t, "fake", rescanErr.PluginID)
	assert.Equal(t, before, p.AllSearchables())
}

func TestBase_CanceledRescanKeepsPreviousList(t *testing.T) {
	p := newFakePlugin(t, "fake")
	require.NoError(t, p.Rescan(context.Background()))
	before := p.AllSearchables()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Rescan(ctx), context.Canceled)
	assert.Equal(t, before, p.AllSearchables())
}

func TestBase_ConcurrentRescanIsRejected(t *testing.T) {
	p := newFakePlugin(t, "fake")
	p.enter = make(chan struct{})
	p.gate = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, p.Rescan(context.Background()))
	}()

	<-p.enter
	assert.ErrorIs(t, p.Rescan(context.Background()), ErrRescanInProgress)
	close(p.gate)
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Len(t, p.AllSearchables(), 2)
}

func TestBase_ReadersSeeWholeLists(t *testing.T) {
	p := newFakePlugin(t, "fake")
	require.NoError(t, p.Rescan(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 50 {
			_ = p.Rescan(context.Background())
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		items := p.AllSearchables()
		require.Len(t, items, 2)
		assert.Equal(t, items[0].Name()[len("fake"):], items[1].Name()[len("fake-b"):])
	}
}

func TestBase_AllSearchablesReturnsCopy(t *testing.T) {
	p := newFakePlugin(t, "fake")
	require.NoError(t, p.Rescan(context.Background()))

	items := p.AllSearchables()
	items[0] = search.Item{ItemID: "mutated"}
	assert.Equal(t, "fake", p.AllSearchables()[0].ID())
}

type optionsPlugin struct {
	*fakePlugin
}

func (optionsPlugin) DefaultSettings() settings.Settings {
	return settings.Settings{"path": "/tmp/entries.yaml"}
}

func TestDefaultSettings(t *testing.T) {
	a := newFakePlugin(t, "a")
	b := optionsPlugin{newFakePlugin(t, "b")}

	base := settings.Settings{settings.KeyThreshold: 0.5}
	got := DefaultSettings(base, a, b)

	assert.Equal(t, settings.Settings{
		settings.KeyThreshold: 0.5,
		"plugins.a.enabled":   true,
		"plugins.b.enabled":   true,
		"plugins.b.path":      "/tmp/entries.yaml",
	}, got)
	assert.Len(t, base, 1)
}

func TestExecutionContext(t *testing.T) {
	ec := ExecutionContext{UserDataPath: "/data", Platform: "darwin"}
	assert.Equal(t, "/data/MacOsApplicationSearchPlugin", ec.PluginFolder("MacOsApplicationSearchPlugin"))
	assert.NotEmpty(t, NewExecutionContext("/data").Platform)
}
