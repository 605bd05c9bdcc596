// Package data provides the records that drive :for-each rendering.
//
// A record has the shape
//
//	{"meta": {"filename": "posts/hello.md"}, "name": "hello", "content": "...", "data": {...}}
//
// where data holds the decoded JSON document or the markdown front matter and
// content holds the markdown body. Fields are addressed with slash-separated
// pointers such as "/data/title" or "/meta/filename".
package data

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one data entry
type Record map[string]any

// Provider returns the ordered records used for :for-each expansion
type Provider interface {
	Get() ([]Record, error)
}

// StaticProvider serves a fixed list of records
type StaticProvider []Record

// Get returns the records
func (p StaticProvider) Get() ([]Record, error) {
	return p, nil
}

// Lookup resolves pointer against record and renders the value as text.
// Strings are returned as-is, other scalars through fmt, and objects or arrays
// as JSON. The empty pointer (or "/") addresses the whole record. The second
// result is false when any segment of the pointer does not resolve.
func Lookup(record Record, pointer string) (string, bool) {
	value, ok := resolve(map[string]any(record), pointer)
	if !ok || value == nil {
		return "", false
	}
	return render(value)
}

func resolve(root any, pointer string) (any, bool) {
	pointer = strings.Trim(pointer, "/")
	if pointer == "" {
		return root, true
	}

	current := root
	for _, part := range strings.Split(pointer, "/") {
		part = unescape(part)

		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case Record:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}

// unescape applies the JSON pointer escapes ~1 -> "/" and ~0 -> "~"
func unescape(part string) string {
	if !strings.Contains(part, "~") {
		return part
	}
	part = strings.ReplaceAll(part, "~1", "/")
	return strings.ReplaceAll(part, "~0", "~")
}

func render(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool, int, int64, float64, uint64:
		return fmt.Sprint(v), true
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(encoded), true
	}
}
