// Package paths resolves href and src references found in documents.
package paths

import (
	"path/filepath"
	"strings"
)

// Resolver resolves references relative to the referencing file, or to Root
// for absolute references.
type Resolver struct {
	Root string
}

// NewResolver creates a resolver for the project rooted at root
func NewResolver(root string) *Resolver {
	return &Resolver{Root: root}
}

// ResolveLinked maps ref, as written in file, to a cleaned path:
//
//	"/css/site.css"  -> <Root>/css/site.css
//	"./card.html"    -> <dir of file>/card.html
//	"card.html"      -> <dir of file>/card.html
func (r *Resolver) ResolveLinked(file, ref string) string {
	ref = filepath.FromSlash(strings.TrimSpace(ref))

	if strings.HasPrefix(ref, string(filepath.Separator)) {
		return filepath.Join(r.Root, ref)
	}
	return filepath.Join(filepath.Dir(file), ref)
}

// Rel returns path relative to Root, or path itself when it lies outside
func (r *Resolver) Rel(path string) string {
	rel, err := filepath.Rel(r.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// OutputPath maps a source path below srcDir to the same relative location
// below outDir.
func OutputPath(srcDir, outDir, path string) (string, error) {
	rel, err := filepath.Rel(srcDir, path)
	if err != nil {
		return "", err
	}
	return filepath.Join(outDir, rel), nil
}

// Within reports whether path is dir itself or lies below it
func Within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
