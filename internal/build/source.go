package build

import (
	"fmt"
	"os"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSourceCacheSize is the number of file contents FileSource keeps
const DefaultSourceCacheSize = 512

// FileSource reads pages and linked components from disk. Contents are
// cached under a path:mtime:size key, so a stat is the only I/O needed for
// a component shared by many pages until the file changes.
type FileSource struct {
	cache  *lru.Cache[string, string]
	hits   atomic.Int64
	misses atomic.Int64
}

// SourceStats describes the read cache
type SourceStats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// NewFileSource creates a file source caching up to size contents
func NewFileSource(size int) (*FileSource, error) {
	if size <= 0 {
		size = DefaultSourceCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating source cache: %w", err)
	}
	return &FileSource{cache: cache}, nil
}

// ReadFile returns the content of path
func (s *FileSource) ReadFile(path string) (string, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if stat.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}

	// Nanosecond mtime: edits landing within the same second must miss.
	metadataKey := fmt.Sprintf("%s:%d:%d", path, stat.ModTime().UnixNano(), stat.Size())
	if content, found := s.cache.Get(metadataKey); found {
		s.hits.Add(1)
		return content, nil
	}
	s.misses.Add(1)

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	content := string(raw)
	s.cache.Add(metadataKey, content)

	return content, nil
}

// Exists reports whether path is a regular file
func (s *FileSource) Exists(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && !stat.IsDir()
}

// Purge drops every cached content
func (s *FileSource) Purge() {
	s.cache.Purge()
}

// Stats returns the cache counters
func (s *FileSource) Stats() SourceStats {
	return SourceStats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Entries: s.cache.Len(),
	}
}
