package session

import (
	"errors"
	"sync"
)

var (
	// ErrWatcherHasParent is returned when a watcher is added to a second parent
	ErrWatcherHasParent = errors.New("watcher already has a parent")

	// ErrCircularWatch is returned when a watch edge would close a cycle
	ErrCircularWatch = errors.New("circular watching not allowed")
)

// WatchGraph tracks parent-watcher relationships. A watcher watches one
// parent; a parent may have many watchers.
type WatchGraph struct {
	mu       sync.RWMutex
	watchers map[string][]string
	parents  map[string]string
}

// NewWatchGraph creates an empty graph
func NewWatchGraph() *WatchGraph {
	return &WatchGraph{
		watchers: make(map[string][]string),
		parents:  make(map[string]string),
	}
}

// Add registers watcher as a watcher of parent
func (g *WatchGraph) Add(parent, watcher string) error {
	if parent == watcher {
		return ErrCircularWatch
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.parents[watcher]; ok {
		return ErrWatcherHasParent
	}
	for current, ok := parent, true; ok; current, ok = g.parents[current] {
		if current == watcher {
			return ErrCircularWatch
		}
	}

	g.parents[watcher] = parent
	g.watchers[parent] = append(g.watchers[parent], watcher)
	return nil
}

// Remove drops watcher's relationship; unknown ids are ignored
func (g *WatchGraph) Remove(watcher string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	parent, ok := g.parents[watcher]
	if !ok {
		return
	}
	delete(g.parents, watcher)

	list := g.watchers[parent]
	for i, id := range list {
		if id == watcher {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(g.watchers, parent)
	} else {
		g.watchers[parent] = list
	}
}

// Watchers returns a copy of parent's watchers
func (g *WatchGraph) Watchers(parent string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.watchers[parent]...)
}

// Parent returns watcher's parent
func (g *WatchGraph) Parent(watcher string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.parents[watcher]
	return p, ok
}

// CleanupParent removes parent and detaches all of its watchers
func (g *WatchGraph) CleanupParent(parent string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	watchers := g.watchers[parent]
	delete(g.watchers, parent)
	for _, w := range watchers {
		delete(g.parents, w)
	}
	return watchers
}

// Empty reports whether the graph has no relationships
func (g *WatchGraph) Empty() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.watchers) == 0 && len(g.parents) == 0
}
