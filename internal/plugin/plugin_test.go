package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mgomes/launchr/internal/events"
	"github.com/mgomes/launchr/internal/search"
	"github.com/mgomes/launchr/internal/settings"
)

// fakePlugin produces n items tagged with the current generation. Setting
// fail makes the next rescan fail after discovery has started.
type fakePlugin struct {
	*Base
	calls  atomic.Int32
	fail   atomic.Bool
	panics atomic.Bool
	gate   chan struct{}
	enter  chan struct{}
	roots  []string
	match  func(string) bool
}

func newFakePlugin(t *testing.T, id string) *fakePlugin {
	t.Helper()
	p := &fakePlugin{}
	p.Base = NewBase(id, NewExecutionContext(t.TempDir()), p.discover, nil)
	return p
}

func (p *fakePlugin) discover(ctx context.Context) ([]search.Searchable, error) {
	n := p.calls.Add(1)
	if p.enter != nil && n == 1 {
		p.enter <- struct{}{}
	}
	if p.gate != nil && n == 1 {
		<-p.gate
	}
	if p.panics.Load() {
		panic("boom")
	}
	if p.fail.Load() {
		return []search.Searchable{item(p.ID(), n)}, errors.New("external tool failed")
	}
	return []search.Searchable{item(p.ID(), n), item(p.ID()+"-b", n)}, nil
}

func (p *fakePlugin) WatchRoots() []string {
	return p.roots
}

func (p *fakePlugin) WatchesPath(path string) bool {
	return p.match == nil || p.match(path)
}

func item(id string, gen int32) search.Searchable {
	return search.Item{
		ItemID:   id,
		ItemName: fmt.Sprintf("%s gen %d", id, gen),
		ItemIcon: search.DummyIcon(),
	}
}

type mapSource struct {
	mu sync.Mutex
	s  settings.Settings
}

func (m *mapSource) EffectiveSettings() settings.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.Clone()
}

func (m *mapSource) set(key string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s[key] = v
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Emit(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}
