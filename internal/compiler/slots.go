package compiler

import (
	"strings"

	"golang.org/x/net/html"
)

// placements holds usage children sorted into named slots and the
// catch-all rest, each in source order.
type placements struct {
	named map[string]string
	rest  string
}

// partitionChildren splits children into top-level nodes. Elements carrying
// slot="name" go to that named placement with the attribute removed; every
// other node goes to the rest. Raw bytes are preserved.
func partitionChildren(children string) placements {
	p := placements{named: make(map[string]string)}

	var (
		rest    strings.Builder
		current strings.Builder
		target  string
		named   bool
		depth   int
	)

	commit := func() {
		if named {
			p.named[target] += current.String()
		} else {
			rest.WriteString(current.String())
		}
		current.Reset()
		named = false
		target = ""
	}

	z := html.NewTokenizer(strings.NewReader(children))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := string(z.Raw())

		if depth > 0 {
			current.WriteString(raw)
			switch tt {
			case html.StartTagToken:
				name, _ := z.TagName()
				if !voidElements[string(name)] {
					depth++
				}
			case html.EndTagToken:
				depth--
			}
			if depth == 0 {
				commit()
			}
			continue
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if slot, ok := getAttribute(parseAttributes(raw), "slot"); ok {
				named = true
				target = slot
				raw = removeAttribute(raw, "slot")
			}
			current.WriteString(raw)
			if tt == html.StartTagToken && !voidElements[string(name)] {
				depth = 1
				continue
			}
			commit()
		default:
			rest.WriteString(raw)
		}
	}

	// unclosed element at the end of the children
	if current.Len() > 0 {
		commit()
	}

	p.rest = rest.String()
	return p
}

// fillSlots replaces the <slot> markers of body with the matching
// placements from children. Markers without a placement are left in place.
func fillSlots(body, children string) string {
	p := partitionChildren(children)

	var out strings.Builder
	offset := 0
	for {
		idx := indexTag(body[offset:], "slot", false)
		if idx < 0 {
			break
		}
		start := offset + idx
		openEnd := findTagEnd(body, start)
		if openEnd < 0 {
			break
		}

		open := body[start : openEnd+1]
		end := openEnd + 1
		if !isSelfClosing(open) {
			if closeIdx := indexTag(body[end:], "slot", true); closeIdx >= 0 {
				if closeEnd := strings.IndexByte(body[end+closeIdx:], '>'); closeEnd >= 0 {
					end = end + closeIdx + closeEnd + 1
				}
			}
		}

		out.WriteString(body[offset:start])

		replacement, ok := p.lookup(open)
		if ok {
			out.WriteString(replacement)
		} else {
			out.WriteString(body[start:end])
		}
		offset = end
	}

	out.WriteString(body[offset:])
	return out.String()
}

func (p placements) lookup(marker string) (string, bool) {
	name, hasName := getAttribute(parseAttributes(marker), "name")
	if hasName && name != "" {
		content, ok := p.named[name]
		return content, ok
	}
	if strings.TrimSpace(p.rest) == "" {
		return "", false
	}
	return strings.TrimSpace(p.rest), true
}
