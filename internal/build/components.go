package build

import (
	"context"
	"fmt"
	"sort"

	"github.com/conneroisu/jampass/internal/compiler"
)

// ComponentInfo describes a component definition and the pages using it
type ComponentInfo struct {
	ID       string   `json:"id"       yaml:"id"`
	File     string   `json:"file"     yaml:"file"`
	Line     int      `json:"line"     yaml:"line"`
	Props    []string `json:"props"    yaml:"props"`
	Fragment bool     `json:"fragment" yaml:"fragment"`
	Usages   int      `json:"usages"   yaml:"usages"`
	Pages    []string `json:"pages"    yaml:"pages"`
}

// Components compiles every page without writing output and reports the
// components each one registers. A component file linked by several pages
// is listed once with the usages summed.
func (b *Builder) Components(ctx context.Context) ([]ComponentInfo, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	pages, err := b.pages()
	if err != nil {
		return nil, err
	}

	index := make(map[string]*ComponentInfo)
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := b.source.ReadFile(page)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", page, err)
		}
		if IsComponentSource(content) {
			continue
		}

		output, err := b.compiler.Transform(content, page)
		if err != nil {
			return nil, fmt.Errorf("compiling %s: %w", page, err)
		}

		for _, def := range output.Definitions {
			key := def.File + "#" + def.ID
			info, ok := index[key]
			if !ok {
				info = newComponentInfo(def)
				index[key] = info
			}
			info.Usages += def.Usages
			if def.Usages > 0 {
				info.Pages = append(info.Pages, page)
			}
		}
	}

	components := make([]ComponentInfo, 0, len(index))
	for _, info := range index {
		components = append(components, *info)
	}
	sort.Slice(components, func(i, j int) bool {
		if components[i].ID != components[j].ID {
			return components[i].ID < components[j].ID
		}
		return components[i].File < components[j].File
	})

	return components, nil
}

func newComponentInfo(def *compiler.Definition) *ComponentInfo {
	props := make([]string, 0, len(def.Props))
	for name, prop := range def.Props {
		if prop.HasDefault {
			props = append(props, name+":"+prop.Default)
			continue
		}
		props = append(props, name)
	}
	sort.Strings(props)

	return &ComponentInfo{
		ID:       def.ID,
		File:     def.File,
		Line:     def.Line,
		Props:    props,
		Fragment: def.Fragment,
		Pages:    []string{},
	}
}
