package compiler

import (
	"strings"

	"golang.org/x/net/html"
)

// attribute is one attribute of a start tag. Start and End delimit the
// attribute (name through closing quote) inside the tag text.
type attribute struct {
	Name     string
	Value    string
	HasValue bool
	Start    int
	End      int
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

func isNameChar(c byte) bool {
	return c == '-' || c == '_' || c == ':' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// tagName returns the element name of a tag starting at s[0] == '<'
func tagName(s string) string {
	if len(s) < 2 || s[0] != '<' {
		return ""
	}
	end := 1
	for end < len(s) && isNameChar(s[end]) {
		end++
	}
	return s[1:end]
}

// findTagEnd returns the index of the '>' closing the tag that starts at
// from, skipping quoted attribute values, or -1.
func findTagEnd(s string, from int) int {
	var quote byte
	for i := from; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return i
		}
	}
	return -1
}

// isSelfClosing reports whether a complete start tag ends with "/>"
func isSelfClosing(tag string) bool {
	return strings.HasSuffix(strings.TrimRight(strings.TrimSuffix(tag, ">"), " \t\n\r"), "/")
}

// indexTag finds "<name" (or "</name" when closing) followed by a tag
// boundary: whitespace, '>', '/' or the end of input.
func indexTag(s, name string, closing bool) int {
	token := "<" + name
	if closing {
		token = "</" + name
	}

	offset := 0
	for {
		idx := strings.Index(s[offset:], token)
		if idx < 0 {
			return -1
		}
		pos := offset + idx
		next := pos + len(token)
		if next >= len(s) || isSpace(s[next]) || s[next] == '>' || s[next] == '/' {
			return pos
		}
		offset = next
	}
}

// parseAttributes reads the attributes of a start tag such as
// `<x-card title="Hi" data-fragment="true">`.
func parseAttributes(tag string) []attribute {
	var attrs []attribute

	i := 1
	for i < len(tag) && isNameChar(tag[i]) {
		i++
	}

	for i < len(tag) {
		for i < len(tag) && (isSpace(tag[i]) || tag[i] == '/') {
			i++
		}
		if i >= len(tag) || tag[i] == '>' {
			break
		}

		start := i
		for i < len(tag) && !isSpace(tag[i]) && tag[i] != '=' && tag[i] != '>' && !(tag[i] == '/' && i+1 < len(tag) && tag[i+1] == '>') {
			i++
		}
		if i == start {
			// stray character
			i++
			continue
		}

		attr := attribute{Name: tag[start:i], Start: start}

		j := i
		for j < len(tag) && isSpace(tag[j]) {
			j++
		}
		if j < len(tag) && tag[j] == '=' {
			j++
			for j < len(tag) && isSpace(tag[j]) {
				j++
			}
			attr.HasValue = true
			if j < len(tag) && (tag[j] == '"' || tag[j] == '\'') {
				quote := tag[j]
				end := strings.IndexByte(tag[j+1:], quote)
				if end < 0 {
					attr.Value = tag[j+1:]
					j = len(tag)
				} else {
					attr.Value = tag[j+1 : j+1+end]
					j = j + 1 + end + 1
				}
			} else {
				vs := j
				for j < len(tag) && !isSpace(tag[j]) && tag[j] != '>' {
					j++
				}
				attr.Value = tag[vs:j]
			}
			i = j
		}

		attr.End = i
		attrs = append(attrs, attr)
	}

	return attrs
}

func getAttribute(attrs []attribute, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// removeAttribute drops every occurrence of the named attribute from tag,
// together with the whitespace preceding it.
func removeAttribute(tag, name string) string {
	attrs := parseAttributes(tag)
	for k := len(attrs) - 1; k >= 0; k-- {
		a := attrs[k]
		if a.Name != name {
			continue
		}
		start := a.Start
		for start > 0 && isSpace(tag[start-1]) {
			start--
		}
		tag = tag[:start] + tag[a.End:]
	}
	return tag
}

// rootElement returns the byte offset of the single top-level element of
// content. ok is false when content holds text outside an element or more
// than one top-level element.
func rootElement(content string) (offset int, ok bool) {
	z := html.NewTokenizer(strings.NewReader(content))

	pos := 0
	depth := 0
	roots := 0
	offset = -1

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := len(z.Raw())

		switch tt {
		case html.TextToken:
			if depth == 0 && strings.TrimSpace(string(z.Text())) != "" {
				return -1, false
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if depth == 0 {
				roots++
				if offset < 0 {
					offset = pos
				}
			}
			if !voidElements[string(name)] {
				depth++
			}
		case html.SelfClosingTagToken:
			if depth == 0 {
				roots++
				if offset < 0 {
					offset = pos
				}
			}
		case html.EndTagToken:
			if depth > 0 {
				depth--
			}
		}

		pos += raw
	}

	return offset, roots == 1 && depth == 0
}

// injectAttributes inserts attrs right after the tag name of the element
// starting at offset.
func injectAttributes(content string, offset int, attrs string) string {
	name := tagName(content[offset:])
	at := offset + 1 + len(name)
	return content[:at] + " " + attrs + content[at:]
}
