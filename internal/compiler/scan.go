package compiler

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/jampass/internal/errors"
	"github.com/conneroisu/jampass/internal/types"
)

const (
	commentStart = "<!--"
	commentEnd   = "-->"
)

// compileMode tells compile what to do with the constructs it meets
type compileMode int

const (
	// modeDocument renders usages and registers templates and links
	modeDocument compileMode = iota
	// modeDefinition registers the templates and links of a definition
	// body and keeps its usages as written until an instance is rendered
	modeDefinition
	// modeInstance renders the usages kept in a definition body. Its links
	// were recorded when the body was registered.
	modeInstance
)

// nested reports whether rendered instances sit inside another component
func (m compileMode) nested() bool {
	return m != modeDocument
}

// cursor walks the lines of one document. Constructs spanning lines pull
// further lines through extend.
type cursor struct {
	lines []string
	pos   int
}

// extend grows buf line by line until find reports an end offset. On
// failure the cursor is restored and buf is returned unchanged.
func (c *cursor) extend(buf string, find func(string) int) (string, int, bool) {
	start := c.pos
	for {
		if end := find(buf); end >= 0 {
			return buf, end, true
		}
		if c.pos >= len(c.lines) {
			c.pos = start
			return buf, -1, false
		}
		buf += "\n" + c.lines[c.pos]
		c.pos++
	}
}

// compile scans src, whose first line is line firstLine of file, and
// returns it with definitions registered into sc and usages handled as mode
// asks.
func (t *transform) compile(src, file string, firstLine int, sc *scope, mode compileMode) (string, error) {
	cur := &cursor{lines: strings.Split(src, "\n")}
	out := make([]string, 0, len(cur.lines))

	for cur.pos < len(cur.lines) {
		line := cur.lines[cur.pos]
		lineNo := firstLine + cur.pos
		cur.pos++

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			out = append(out, line)
			continue
		}

		if strings.HasPrefix(trimmed, commentStart) {
			block, _, _ := cur.extend(line, func(b string) int {
				if i := strings.Index(b, commentEnd); i >= 0 {
					return i + len(commentEnd)
				}
				return -1
			})
			out = append(out, block)
			continue
		}

		emitted, err := t.scanLine(line, cur, file, lineNo, sc, mode)
		if err != nil {
			return "", err
		}
		// a line holding only definitions or dropped usages disappears
		if strings.TrimSpace(emitted) == "" {
			continue
		}
		out = append(out, emitted)
	}

	return strings.Join(out, "\n"), nil
}

// scanLine handles one physical line. Constructs that close in the middle
// of a later line hand the remainder of that line back to this loop.
func (t *transform) scanLine(line string, cur *cursor, file string, lineNo int, sc *scope, mode compileMode) (string, error) {
	var b strings.Builder
	rest := line

	for rest != "" {
		limit := strings.Index(rest, commentStart)
		if limit < 0 {
			limit = len(rest)
		}
		head := rest[:limit]

		tplIdx := findInlineTemplate(head)
		useIdx, name := findUsage(head)

		switch {
		case tplIdx >= 0 && (useIdx < 0 || tplIdx < useIdx):
			plain, err := t.plain(rest[:tplIdx], file, lineNo, sc, mode)
			if err != nil {
				return "", err
			}
			b.WriteString(plain)

			emitted, remainder, err := t.inlineTemplate(rest[tplIdx:], cur, file, lineNo, sc)
			if err != nil {
				return "", err
			}
			b.WriteString(emitted)
			rest = remainder

		case useIdx >= 0:
			plain, err := t.plain(rest[:useIdx], file, lineNo, sc, mode)
			if err != nil {
				return "", err
			}
			b.WriteString(plain)

			if mode == modeDefinition {
				tag, remainder := keepUsageTag(rest[useIdx:], cur)
				b.WriteString(tag)
				rest = remainder
				continue
			}

			emitted, remainder, err := t.usage(rest[useIdx:], name, cur, file, lineNo, sc, mode)
			if err != nil {
				return "", err
			}
			b.WriteString(emitted)
			rest = remainder

		default:
			plain, err := t.plain(rest, file, lineNo, sc, mode)
			if err != nil {
				return "", err
			}
			b.WriteString(plain)
			rest = ""
		}
	}

	return b.String(), nil
}

// findInlineTemplate returns the offset of the first <template> start tag
// whose id carries the component prefix.
func findInlineTemplate(s string) int {
	offset := 0
	for {
		idx := indexTag(s[offset:], templateTag, false)
		if idx < 0 {
			return -1
		}
		start := offset + idx
		tag := s[start:]
		if end := findTagEnd(s, start); end >= 0 {
			tag = s[start : end+1]
		}
		if id, ok := getAttribute(parseAttributes(tag), "id"); ok && isComponentID(id) {
			return start
		}
		offset = start + len(templateTag) + 1
	}
}

// findUsage returns the offset and tag name of the first <x-...> start tag
func findUsage(s string) (int, string) {
	offset := 0
	for {
		idx := strings.Index(s[offset:], "<"+componentPrefix)
		if idx < 0 {
			return -1, ""
		}
		start := offset + idx
		name := tagName(s[start:])
		next := start + 1 + len(name)
		if isComponentID(name) && (next >= len(s) || isSpace(s[next]) || s[next] == '>' || s[next] == '/') {
			return start, name
		}
		offset = start + 1
	}
}

// inlineTemplate registers the <template id="x-..."> block starting at
// s[0]. The block may span lines and contain nested templates.
func (t *transform) inlineTemplate(s string, cur *cursor, file string, lineNo int, sc *scope) (string, string, error) {
	buf, end, ok := cur.extend(s, func(b string) int {
		return matchingClose(b, templateTag)
	})
	if !ok {
		t.diagnose(errors.Diagnostic{
			Kind:    errors.KindMalformedComponent,
			File:    file,
			Line:    lineNo,
			Source:  truncate(s),
			Message: "template block has no closing tag",
		})
		return s, "", nil
	}

	block := buf[:end]
	openEnd := findTagEnd(block, 0)
	id, _ := getAttribute(parseAttributes(block[:openEnd+1]), "id")

	body, child, err := t.compileDefinition(block, file, id, lineNo, sc)
	if err != nil {
		return "", "", err
	}
	def := newDefinition(id, file, lineNo, body)
	def.scope = child
	sc.define(def)

	return "", buf[end:], nil
}

// matchingClose returns the end offset of the element opened at s[0],
// counting nested elements of the same name, or -1.
func matchingClose(s, name string) int {
	openEnd := findTagEnd(s, 0)
	if openEnd < 0 {
		return -1
	}
	if isSelfClosing(s[:openEnd+1]) {
		return openEnd + 1
	}

	depth := 1
	i := openEnd + 1
	for {
		open := indexTag(s[i:], name, false)
		closing := indexTag(s[i:], name, true)
		if closing < 0 {
			return -1
		}

		if open >= 0 && open < closing {
			end := findTagEnd(s, i+open)
			if end < 0 {
				return -1
			}
			if !isSelfClosing(s[i+open : end+1]) {
				depth++
			}
			i = end + 1
			continue
		}

		end := strings.IndexByte(s[i+closing:], '>')
		if end < 0 {
			return -1
		}
		i = i + closing + end + 1
		depth--
		if depth == 0 {
			return i
		}
	}
}

// compileDefinition registers the definitions and links found in the inner
// content of a <template> element into a child scope and returns the
// reassembled element with that scope. Usages in the body are rendered per
// instance. Bodies that are not a template element are returned as-is and
// reported when used.
func (t *transform) compileDefinition(body, file, id string, line int, sc *scope) (string, *scope, error) {
	key := file + "#" + id
	t.inProgress[key] = true
	defer delete(t.inProgress, key)

	child := newScope(sc)
	trimmed := strings.TrimSpace(body)
	open, inner, closing, ok := splitTemplate(trimmed)
	if !ok {
		return trimmed, child, nil
	}

	compiled, err := t.compile(inner, file, line, child, modeDefinition)
	if err != nil {
		return "", nil, err
	}

	return open + compiled + closing, child, nil
}

// keepUsageTag returns the start tag of the usage at s[0] unchanged and the
// remainder of the last line it spans.
func keepUsageTag(s string, cur *cursor) (string, string) {
	buf, end, ok := cur.extend(s, func(b string) int {
		if e := findTagEnd(b, 0); e >= 0 {
			return e + 1
		}
		return -1
	})
	if !ok {
		return s, ""
	}
	return buf[:end], buf[end:]
}

// usage renders the <x-name ...> usage starting at s[0]. It returns the
// rendered markup and the remainder of the last line consumed.
func (t *transform) usage(s, name string, cur *cursor, file string, lineNo int, sc *scope, mode compileMode) (string, string, error) {
	buf, end, ok := cur.extend(s, func(b string) int {
		if e := findTagEnd(b, 0); e >= 0 {
			return e + 1
		}
		return -1
	})
	if !ok {
		// unterminated start tag, nothing to render
		return s, "", nil
	}

	openTag := buf[:end]
	after := buf[end:]
	children := ""

	if !isSelfClosing(openTag) {
		var closeStart int
		full, closeEnd, found := cur.extend(after, func(b string) int {
			start, e := usageClose(b, name)
			closeStart = start
			return e
		})
		if found {
			children = full[:closeStart]
			after = full[closeEnd:]
		}
	}

	def := sc.lookup(name)
	if def == nil {
		t.diagnose(errors.Diagnostic{
			Kind:      errors.KindUndefinedComponent,
			Component: name,
			File:      file,
			Line:      lineNo,
			Source:    truncate(openTag),
			Message:   "no definition found, usage removed",
		})
		return "", after, nil
	}

	rendered, err := t.renderUsage(def, openTag, children, file, lineNo, sc, mode)
	if err != nil {
		return "", "", err
	}
	return rendered, after, nil
}

// usageClose finds the </name> closing the usage whose start tag precedes
// s. Nested usages of the same name are skipped.
func usageClose(s, name string) (int, int) {
	depth := 1
	i := 0
	for {
		open := indexTag(s[i:], name, false)
		closing := indexTag(s[i:], name, true)
		if closing < 0 {
			return -1, -1
		}

		if open >= 0 && open < closing {
			end := findTagEnd(s, i+open)
			if end < 0 {
				return -1, -1
			}
			if !isSelfClosing(s[i+open : end+1]) {
				depth++
			}
			i = end + 1
			continue
		}

		start := i + closing
		end := strings.IndexByte(s[start:], '>')
		if end < 0 {
			return -1, -1
		}
		i = start + end + 1
		depth--
		if depth == 0 {
			return start, i
		}
	}
}

// plain copies text that holds no component syntax. Asset references are
// recorded; rel="component" links are compiled, registered and removed.
func (t *transform) plain(text, file string, lineNo int, sc *scope, mode compileMode) (string, error) {
	if mode == modeInstance {
		return text, nil
	}
	if !strings.Contains(text, "href") && !strings.Contains(text, "src") {
		return text, nil
	}

	out := text
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		raw := string(z.Raw())
		attrs := parseAttributes(raw)

		rel, hasRel := getAttribute(attrs, "rel")
		href, hasHref := getAttribute(attrs, "href")
		src, hasSrc := getAttribute(attrs, "src")

		switch {
		case hasRel && rel == "component" && hasHref:
			id, _ := getAttribute(attrs, "id")
			if err := t.linkComponent(file, href, id, raw, lineNo, sc); err != nil {
				return "", err
			}
			out = strings.Replace(out, raw, "", 1)
		case hasRel && hasHref:
			t.linkAsset(file, href, raw, lineNo)
		case hasSrc:
			t.linkAsset(file, src, raw, lineNo)
		}
	}

	return out, nil
}

// isLocalRef reports whether ref points into the project
func isLocalRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return u.Scheme == ""
}

func (t *transform) resolveRef(file, ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return t.compiler.resolver.ResolveLinked(file, ref)
}

func (t *transform) linkAsset(file, ref, tag string, lineNo int) {
	if !isLocalRef(ref) {
		return
	}

	asset := t.resolveRef(file, ref)
	if !t.compiler.source.Exists(asset) {
		t.diagnose(errors.Diagnostic{
			Kind:    errors.KindMissingLinkedAsset,
			File:    file,
			Line:    lineNo,
			Source:  truncate(tag),
			Message: fmt.Sprintf("linked file %s does not exist", asset),
		})
		return
	}

	t.linked = append(t.linked, types.LinkedAsset{File: file, Asset: asset})
}

// linkComponent reads, compiles and registers the component file linked by
// a rel="component" tag.
func (t *transform) linkComponent(file, ref, id, tag string, lineNo int, sc *scope) error {
	if !isComponentID(id) {
		t.diagnose(errors.Diagnostic{
			Kind:    errors.KindMalformedComponent,
			File:    file,
			Line:    lineNo,
			Source:  truncate(tag),
			Message: fmt.Sprintf("component link needs an id starting with %q", componentPrefix),
		})
		return nil
	}

	if !isLocalRef(ref) {
		t.diagnose(errors.Diagnostic{
			Kind:      errors.KindMissingLinkedAsset,
			Component: id,
			File:      file,
			Line:      lineNo,
			Source:    truncate(tag),
			Message:   "remote components are not fetched",
		})
		return nil
	}

	target := t.resolveRef(file, ref)
	if t.inProgress[target+"#"+id] {
		t.diagnose(errors.Diagnostic{
			Kind:      errors.KindMalformedComponent,
			Component: id,
			File:      file,
			Line:      lineNo,
			Source:    truncate(tag),
			Message:   fmt.Sprintf("component links back to itself through %s", target),
		})
		return nil
	}

	if !t.compiler.source.Exists(target) {
		t.diagnose(errors.Diagnostic{
			Kind:      errors.KindMissingLinkedAsset,
			Component: id,
			File:      file,
			Line:      lineNo,
			Source:    truncate(tag),
			Message:   fmt.Sprintf("component file %s does not exist", target),
		})
		return nil
	}

	content, err := t.compiler.source.ReadFile(target)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeReadFailed, "failed to read component", err).
			WithLocation(target, 0).
			WithComponent(id)
	}

	t.linked = append(t.linked, types.LinkedAsset{File: file, Asset: target, IsComponent: true})

	body, child, err := t.compileDefinition(content, target, id, 1, sc)
	if err != nil {
		return err
	}
	def := newDefinition(id, target, 1, body)
	def.scope = child
	sc.define(def)
	return nil
}
