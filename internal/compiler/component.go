package compiler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/conneroisu/jampass/internal/errors"
	"github.com/conneroisu/jampass/internal/memory"
)

const (
	componentPrefix = "x-"
	templateTag     = "template"
)

// Definition is a component registered from an inline <template> block or
// a rel="component" link. It lives for one top-level Transform call.
type Definition struct {
	ID   string
	File string
	Line int
	// Body is the compiled <template> element
	Body     string
	Props    map[string]*Prop
	Fragment bool
	// Usages counts rendered instances and seeds their scope ids
	Usages int

	LastTag      string
	LastChildren string
	LastProps    map[string]*Prop

	// scope holds the definitions registered inside the body
	scope *scope
	// referenced is set by the first usage, rendered or not
	referenced bool
	// rendering guards against a body that uses its own component
	rendering bool
}

func isComponentID(id string) bool {
	return strings.HasPrefix(id, componentPrefix) && len(id) > len(componentPrefix)
}

func newDefinition(id, file string, line int, body string) *Definition {
	def := &Definition{
		ID:    id,
		File:  file,
		Line:  line,
		Body:  body,
		Props: map[string]*Prop{},
	}

	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "<"+templateTag) {
		return def
	}
	end := findTagEnd(trimmed, 0)
	if end < 0 {
		return def
	}

	attrs := parseAttributes(trimmed[:end+1])
	if list, ok := getAttribute(attrs, "data-props"); ok {
		def.Props = parsePropsDict(list)
	}
	if frag, ok := getAttribute(attrs, "data-fragment"); ok && frag == "true" {
		def.Fragment = true
	}
	return def
}

// splitTemplate cuts a <template> element into its start tag, inner content
// and end tag.
func splitTemplate(body string) (open, inner, close string, ok bool) {
	if !strings.HasPrefix(body, "<"+templateTag) {
		return "", "", "", false
	}
	openEnd := findTagEnd(body, 0)
	if openEnd < 0 {
		return "", "", "", false
	}
	closeStart := strings.LastIndex(body, "</"+templateTag)
	if closeStart <= openEnd {
		return "", "", "", false
	}
	return body[:openEnd+1], body[openEnd+1 : closeStart], body[closeStart:], true
}

// scope is one level of the lexical definition chain. Nested definition
// bodies see the definitions of every enclosing level.
type scope struct {
	parent *scope
	defs   map[string]*Definition
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, defs: make(map[string]*Definition)}
}

func (s *scope) lookup(id string) *Definition {
	for cur := s; cur != nil; cur = cur.parent {
		if def, ok := cur.defs[id]; ok {
			return def
		}
	}
	return nil
}

func (s *scope) define(def *Definition) {
	s.defs[def.ID] = def
}

// definitions returns the definitions of this level sorted by id
func (s *scope) definitions() []*Definition {
	defs := make([]*Definition, 0, len(s.defs))
	for _, d := range s.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// reportUnused records an UnusedComponent warning for every definition of
// the level that was never used, then checks the bodies of the used ones.
// Definitions inside an unused body are not reported on their own.
func (t *transform) reportUnused(s *scope) {
	for _, def := range s.definitions() {
		if def.referenced {
			if def.scope != nil {
				t.reportUnused(def.scope)
			}
			continue
		}
		t.diagnose(errors.Diagnostic{
			Kind:      errors.KindUnusedComponent,
			Component: def.ID,
			File:      def.File,
			Line:      def.Line,
			Message:   "component is defined but never used",
		})
	}
}

// renderUsage renders every pass of one usage of def
func (t *transform) renderUsage(def *Definition, openTag, children, file string, line int, sc *scope, mode compileMode) (string, error) {
	usage := newUsageProps(parseAttributes(openTag))

	def.referenced = true
	def.LastTag = openTag
	def.LastChildren = children
	def.LastProps = usage.asMap()

	compiledChildren := ""
	if strings.TrimSpace(children) != "" {
		var err error
		compiledChildren, err = t.compile(children, file, line, sc, mode)
		if err != nil {
			return "", err
		}
	}

	passes := t.expandPasses(usage, openTag, file, line, def.ID)
	rendered := make([]string, 0, len(passes))
	for _, pass := range passes {
		ordinal := def.Usages
		def.Usages++

		out, err := t.resolveComponent(def, pass, ordinal, mode.nested(), usage, file, line)
		if err != nil {
			return "", err
		}
		if out == "" {
			continue
		}
		if compiledChildren != "" {
			out = fillSlots(out, compiledChildren)
		}
		rendered = append(rendered, out)
	}

	return strings.Join(rendered, "\n"), nil
}

// resolveComponent renders one instance of def. Usages kept in the body are
// rendered as nested instances of this one. Embedded style and script blocks
// are scoped and queued into the page pools; the markup is returned.
func (t *transform) resolveComponent(def *Definition, pass renderPass, ordinal int, nested bool, usage usageProps, file string, line int) (string, error) {
	body := strings.TrimSpace(def.Body)

	if def.rendering {
		t.diagnose(errors.Diagnostic{
			Kind:      errors.KindMalformedComponent,
			Component: def.ID,
			File:      def.File,
			Line:      def.Line,
			Source:    truncate(body),
			Message:   "component uses itself",
		})
		return "", nil
	}

	_, inner, _, ok := splitTemplate(body)
	if !ok || strings.TrimSpace(inner) == "" {
		t.diagnose(errors.Diagnostic{
			Kind:      errors.KindMalformedComponent,
			Component: def.ID,
			File:      file,
			Line:      line,
			Source:    truncate(body),
			Message:   "components must be defined as a non-empty template tag",
		})
		return "", nil
	}

	scopeID := ""
	if !def.Fragment {
		scopeID = memory.Checksum(body + strconv.Itoa(ordinal))
	}

	inner, unresolved := resolveProps(inner, def.Props, usage, pass.record)
	if len(unresolved) > 0 {
		t.diagnose(errors.Diagnostic{
			Kind:      errors.KindUnresolvedProp,
			Component: def.ID,
			File:      file,
			Line:      line,
			Source:    truncate(def.LastTag),
			Message:   fmt.Sprintf("no value for prop(s) %s", strings.Join(unresolved, ", ")),
		})
		return "", nil
	}

	content, styles := extractBlocks(inner, "style")
	content, scripts := extractBlocks(content, "script")

	if def.scope != nil {
		def.rendering = true
		rendered, err := t.compile(content, def.File, def.Line, def.scope, modeInstance)
		def.rendering = false
		if err != nil {
			return "", err
		}
		content = rendered
	}

	for _, css := range styles {
		if !def.Fragment {
			css = scopeCSS(css, scopeID)
		}
		t.compiler.memory.QueueStyle(css)
	}
	for _, js := range scripts {
		if strings.TrimSpace(js) == "" {
			continue
		}
		if def.Fragment {
			js = wrapFragmentJS(js)
		} else {
			js = scopeJS(js, scopeID, ordinal)
		}
		t.compiler.memory.QueueScript(js)
	}

	content = strings.TrimSpace(content)
	if def.Fragment {
		return content, nil
	}

	attrs := fmt.Sprintf(`%s="%s" %s="%t" %s="%s" %s="%d"`,
		attrScope, scopeID, attrNested, nested, attrName, def.ID, attrInstance, ordinal)

	if offset, single := rootElement(content); single {
		return injectAttributes(content, offset, attrs), nil
	}
	return "<div " + attrs + ">" + content + "</div>", nil
}

// extractBlocks removes every <name>...</name> element from s and returns
// the remaining text and the contents of the removed elements.
func extractBlocks(s, name string) (string, []string) {
	var blocks []string
	var out strings.Builder

	offset := 0
	for {
		idx := indexTag(s[offset:], name, false)
		if idx < 0 {
			break
		}
		start := offset + idx
		openEnd := findTagEnd(s, start)
		if openEnd < 0 {
			break
		}
		closeIdx := indexTag(s[openEnd+1:], name, true)
		if closeIdx < 0 {
			break
		}
		closeStart := openEnd + 1 + closeIdx
		closeEnd := strings.IndexByte(s[closeStart:], '>')
		if closeEnd < 0 {
			break
		}

		out.WriteString(s[offset:start])
		blocks = append(blocks, s[openEnd+1:closeStart])
		offset = closeStart + closeEnd + 1
	}

	out.WriteString(s[offset:])
	return out.String(), blocks
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
