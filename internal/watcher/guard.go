// Package watcher detects outside writes to live component paths while a
// transaction's scratch-directory steps run. Until the install step, nothing
// in a plan is allowed to touch live state; a write observed here means
// some other process is mutating the component mid-transaction, which the
// operator should know about before trusting the verification results.
package watcher

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Guard watches the parent directories of a set of live paths and records
// any event touching one of them.
type Guard struct {
	paths   map[string]bool
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	writes []string
	seen   map[string]bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewGuard creates a Guard for the given live paths.
func NewGuard(paths []string) (*Guard, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths to guard")
	}

	pathSet := make(map[string]bool, len(paths))
	for _, p := range paths {
		pathSet[filepath.Clean(p)] = true
	}

	return &Guard{
		paths:  pathSet,
		seen:   make(map[string]bool),
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins watching. Directories that do not exist yet are skipped;
// a path whose parent is missing cannot be written to either.
func (g *Guard) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	g.watcher = w

	dirs := make(map[string]bool)
	for p := range g.paths {
		dirs[filepath.Dir(p)] = true
	}
	watched := 0
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			continue
		}
		watched++
	}
	if watched == 0 {
		w.Close()
		g.watcher = nil
		return fmt.Errorf("no guarded directories could be watched")
	}

	g.wg.Add(1)
	go g.run()
	return nil
}

// run consumes watcher events until stopped.
func (g *Guard) run() {
	defer g.wg.Done()

	for {
		select {
		case event, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			g.record(event)
		case _, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are not writes; nothing to record.
		case <-g.stopCh:
			return
		}
	}
}

// record notes an event if it touches a guarded path. Each path is reported
// once no matter how many events it produces.
func (g *Guard) record(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) == 0 {
		return
	}

	name := filepath.Clean(event.Name)
	if !g.paths[name] {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.seen[name] {
		g.seen[name] = true
		g.writes = append(g.writes, name)
	}
}

// Stop halts watching and returns the guarded paths that were touched,
// sorted. Safe to call when Start failed or was never called.
func (g *Guard) Stop() []string {
	if g.watcher != nil {
		close(g.stopCh)
		g.watcher.Close()
		g.wg.Wait()
		g.watcher = nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	writes := make([]string, len(g.writes))
	copy(writes, g.writes)
	sort.Strings(writes)
	return writes
}
