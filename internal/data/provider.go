package data

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/jampass/internal/errors"
)

const frontMatterDelimiter = "---"

// FileProvider loads records from *.json and *.md files below Dir. Records
// are sorted by file path and cached until Invalidate is called.
type FileProvider struct {
	Dir string

	records []Record
	loaded  bool
	mutex   sync.Mutex
}

// NewFileProvider creates a provider rooted at dir
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{Dir: dir}
}

// Get returns the records, loading them on first use. A missing data
// directory yields no records.
func (p *FileProvider) Get() ([]Record, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.loaded {
		return p.records, nil
	}

	records, err := p.load()
	if err != nil {
		return nil, err
	}

	p.records = records
	p.loaded = true
	return records, nil
}

// Invalidate drops the cached records, e.g. after a data file changed
func (p *FileProvider) Invalidate() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.records = nil
	p.loaded = false
}

func (p *FileProvider) load() ([]Record, error) {
	if _, err := os.Stat(p.Dir); os.IsNotExist(err) {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(p.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if IsDataFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeDataLoadFailed, "failed to walk data directory", err).
			WithLocation(p.Dir, 0)
	}

	sort.Strings(files)

	records := make([]Record, 0, len(files))
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.NewIOError(errors.ErrCodeReadFailed, "failed to read data file", err).
				WithLocation(file, 0)
		}

		rel, err := filepath.Rel(p.Dir, file)
		if err != nil {
			rel = file
		}

		record, err := ParseRecord(filepath.ToSlash(rel), content)
		if err != nil {
			return nil, errors.NewIOError(errors.ErrCodeDataLoadFailed, "failed to parse data file", err).
				WithLocation(file, 0)
		}
		records = append(records, record)
	}

	return records, nil
}

// IsDataFile reports whether path is a file the provider loads
func IsDataFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".md":
		return true
	default:
		return false
	}
}

// ParseRecord builds a record from the content of a data file
func ParseRecord(filename string, content []byte) (Record, error) {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	record := Record{
		"meta": map[string]any{"filename": filename},
		"name": name,
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		var doc any
		if err := json.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		record["content"] = ""
		record["data"] = doc
	case ".md":
		front, body, err := splitFrontMatter(content)
		if err != nil {
			return nil, err
		}
		record["content"] = body
		record["data"] = front
	default:
		return nil, fmt.Errorf("unsupported data file: %s", filename)
	}

	return record, nil
}

// splitFrontMatter separates the YAML block delimited by "---" lines from
// the markdown body. Documents without front matter yield an empty map.
func splitFrontMatter(content []byte) (map[string]any, string, error) {
	front := map[string]any{}
	text := strings.ReplaceAll(string(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))), "\r\n", "\n")

	if !strings.HasPrefix(text, frontMatterDelimiter+"\n") {
		return front, text, nil
	}

	rest := text[len(frontMatterDelimiter)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelimiter)
	if end < 0 {
		return front, text, nil
	}

	block := rest[:end]
	body := strings.TrimPrefix(rest[end+len(frontMatterDelimiter)+1:], "\n")

	if err := yaml.Unmarshal([]byte(block), &front); err != nil {
		return nil, "", fmt.Errorf("invalid front matter: %w", err)
	}
	if front == nil {
		front = map[string]any{}
	}

	return front, body, nil
}
