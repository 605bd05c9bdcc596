// Package memory holds the incremental-build state of a jampass run: content
// fingerprints per file, the reverse linked-asset graph, the pending
// style/script pools of the page being compiled, and the signals that force
// reprocessing regardless of fingerprints.
//
// A Memory lives for the whole run and survives watch-mode rebuilds. It must
// not be shared by transforms running concurrently; a parallel host gives each
// worker its own instance.
package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/jampass/internal/types"
)

// Memory is the incremental-build state
type Memory struct {
	// fingerprints maps file path -> last-seen content checksum
	fingerprints map[string]string
	// linked maps referenced file -> set of referencing files
	linked  map[string]map[string]struct{}
	signals map[types.Signal]bool

	styles  *pool
	scripts *pool

	watchMode bool
	mutex     sync.RWMutex
}

// New creates an empty Memory
func New() *Memory {
	return &Memory{
		fingerprints: make(map[string]string),
		linked:       make(map[string]map[string]struct{}),
		signals:      make(map[types.Signal]bool),
		styles:       newPool(),
		scripts:      newPool(),
	}
}

// SetWatchMode records whether the run is a watch loop
func (m *Memory) SetWatchMode(on bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.watchMode = on
}

// WatchMode reports whether the run is a watch loop
func (m *Memory) WatchMode() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.watchMode
}

// Changed reports whether file must be reprocessed: its content checksum
// differs from the remembered one, or a signal is raised.
func (m *Memory) Changed(file, content string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, raised := range m.signals {
		if raised {
			return true
		}
	}

	previous, seen := m.fingerprints[file]
	return !seen || previous != Checksum(content)
}

// Remember stores the checksum of content for file
func (m *Memory) Remember(file, content string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.fingerprints[file] = Checksum(content)
}

// Forget drops the fingerprint of file, e.g. after it was removed
func (m *Memory) Forget(file string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.fingerprints, file)
}

// Fingerprint returns the remembered checksum of file
func (m *Memory) Fingerprint(file string) (string, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	sum, ok := m.fingerprints[file]
	return sum, ok
}

// Link records every asset edge. The graph only grows.
func (m *Memory) Link(assets []types.LinkedAsset) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, a := range assets {
		if a.Asset == "" || a.File == "" {
			continue
		}
		refs, ok := m.linked[a.Asset]
		if !ok {
			refs = make(map[string]struct{})
			m.linked[a.Asset] = refs
		}
		refs[a.File] = struct{}{}
	}
}

// Referencing returns the files that directly reference asset, sorted
func (m *Memory) Referencing(asset string) []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return sortedKeys(m.linked[asset])
}

// IsLinked reports whether any file references asset
func (m *Memory) IsLinked(asset string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.linked[asset]) > 0
}

// Dependents answers "what must be rebuilt when file changes": the files
// referencing it, the files referencing those, and so on until no further
// referencing files remain. The result is sorted and never contains file.
func (m *Memory) Dependents(file string) []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	visited := map[string]struct{}{file: {}}
	queue := []string{file}
	var result []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for ref := range m.linked[current] {
			if _, seen := visited[ref]; seen {
				continue
			}
			visited[ref] = struct{}{}
			result = append(result, ref)
			queue = append(queue, ref)
		}
	}

	sort.Strings(result)
	return result
}

// Graph returns a copy of the reverse dependency graph
func (m *Memory) Graph() map[string][]string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	graph := make(map[string][]string, len(m.linked))
	for asset, refs := range m.linked {
		graph[asset] = sortedKeys(refs)
	}
	return graph
}

// Signal raises a reprocessing signal
func (m *Memory) Signal(s types.Signal) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.signals[s] = true
}

// Signaled reports whether s is raised
func (m *Memory) Signaled(s types.Signal) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.signals[s]
}

// ResetSignals lowers every signal
func (m *Memory) ResetSignals() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.signals = make(map[types.Signal]bool)
}

// Clear resets the fingerprints, forcing a full rebuild, and keeps the
// dependency graph.
func (m *Memory) Clear() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.fingerprints = make(map[string]string)
}

// QueueStyle adds a rewritten style block to the page pool
func (m *Memory) QueueStyle(css string) {
	m.styles.add(css)
}

// QueueScript adds a rewritten script block to the page pool
func (m *Memory) QueueScript(js string) {
	m.scripts.add(js)
}

// PendingScripts reports whether scripts are waiting for a flush
func (m *Memory) PendingScripts() bool {
	return m.scripts.len() > 0
}

// FlushStyles returns the pooled style blocks joined by newlines and empties
// the pool.
func (m *Memory) FlushStyles() string {
	return m.styles.flush()
}

// FlushScripts returns the pooled script blocks joined by newlines and
// empties the pool.
func (m *Memory) FlushScripts() string {
	return m.scripts.flush()
}

// pool keeps entries in insertion order and drops exact duplicates, such as
// the unscoped blocks of a fragment used more than once.
type pool struct {
	entries []string
	seen    map[string]struct{}
	mutex   sync.Mutex
}

func newPool() *pool {
	return &pool{seen: make(map[string]struct{})}
}

func (p *pool) add(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, dup := p.seen[s]; dup {
		return
	}
	p.seen[s] = struct{}{}
	p.entries = append(p.entries, s)
}

func (p *pool) len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.entries)
}

func (p *pool) flush() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	out := strings.Join(p.entries, "\n")
	p.entries = nil
	p.seen = make(map[string]struct{})
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
