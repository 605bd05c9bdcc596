package compiler

import (
	"regexp"
	"sort"
	"strings"

	"github.com/conneroisu/jampass/internal/data"
)

// Provenance tells where a prop came from
type Provenance int

const (
	// ProvenanceAttribute marks props declared by data-props or passed as
	// usage attributes.
	ProvenanceAttribute Provenance = iota
	// ProvenanceDirective marks the synthetic prop created by :for-each.
	ProvenanceDirective
)

// Prop is a named component input
type Prop struct {
	Name       string
	Default    string
	HasDefault bool
	Value      string
	HasValue   bool
	Provenance Provenance
}

// parsePropsDict parses `name:default,other` as found in data-props.
func parsePropsDict(list string) map[string]*Prop {
	props := make(map[string]*Prop)

	for _, item := range strings.Split(list, ",") {
		name, def, hasDefault := strings.Cut(item, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		props[name] = &Prop{
			Name:       name,
			Default:    strings.TrimSpace(def),
			HasDefault: hasDefault,
		}
	}

	return props
}

// usageProps are the values a usage site supplies
type usageProps struct {
	// values holds plain attributes of the usage tag
	values map[string]string
	// overrides holds defaults given through data-props on the usage tag
	overrides map[string]*Prop
	// directive names the synthetic :for-each prop, if any
	directive string
}

func newUsageProps(attrs []attribute) usageProps {
	u := usageProps{values: make(map[string]string)}

	for _, a := range attrs {
		switch a.Name {
		case directiveAttr:
			u.directive = strings.TrimSpace(a.Value)
		case "data-props":
			u.overrides = parsePropsDict(a.Value)
		default:
			u.values[a.Name] = a.Value
		}
	}

	return u
}

// asMap flattens the usage values for Definition.LastProps
func (u usageProps) asMap() map[string]*Prop {
	out := make(map[string]*Prop, len(u.values)+1)
	for name, value := range u.values {
		out[name] = &Prop{Name: name, Value: value, HasValue: true}
	}
	if u.directive != "" {
		out[u.directive] = &Prop{Name: u.directive, Provenance: ProvenanceDirective}
	}
	return out
}

// lookup applies the resolution order: usage value, usage default
// override, declared default.
func (u usageProps) lookup(declared *Prop) (string, bool) {
	if v, ok := u.values[declared.Name]; ok {
		return v, true
	}
	if o, ok := u.overrides[declared.Name]; ok && o.HasDefault {
		return o.Default, true
	}
	if declared.HasDefault {
		return declared.Default, true
	}
	return "", false
}

// valueToken matches any $value("...") placeholder left in a body
var valueToken = regexp.MustCompile(`\$value\(["']([^"']*)["']\)`)

func valueForms(name string) []string {
	return []string{
		`$value("` + name + `")`,
		`$value('` + name + `')`,
		`("` + name + `")`,
		`('` + name + `')`,
	}
}

// resolveProps substitutes every declared prop into body. It returns the
// names of props referenced by body that have no value, including
// $value("...") placeholders naming no declared prop; when that list is not
// empty the substituted text must not be used.
func resolveProps(body string, declared map[string]*Prop, usage usageProps, record data.Record) (string, []string) {
	if usage.directive != "" {
		body = resolvePointers(body, usage.directive, record)
	}

	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sort.Strings(names)

	var unresolved []string
	for _, name := range names {
		if name == usage.directive {
			continue
		}

		value, ok := usage.lookup(declared[name])
		if !ok {
			if references(body, name) {
				unresolved = append(unresolved, name)
			}
			continue
		}

		for _, form := range valueForms(name) {
			body = strings.ReplaceAll(body, form, value)
		}
		body = declareCustomProperty(body, name, value)
	}

	seen := make(map[string]bool, len(unresolved))
	for _, name := range unresolved {
		seen[name] = true
	}
	for _, match := range valueToken.FindAllStringSubmatch(body, -1) {
		if name := match[1]; !seen[name] {
			seen[name] = true
			unresolved = append(unresolved, name)
		}
	}

	return body, unresolved
}

func references(body, name string) bool {
	for _, form := range valueForms(name) {
		if strings.Contains(body, form) {
			return true
		}
	}
	return indexCustomProperty(body, name) >= 0
}

// indexCustomProperty finds "--name" not followed by another identifier
// character, so --size does not match --size-lg.
func indexCustomProperty(s, name string) int {
	token := "--" + name
	offset := 0
	for {
		idx := strings.Index(s[offset:], token)
		if idx < 0 {
			return -1
		}
		pos := offset + idx
		next := pos + len(token)
		if next >= len(s) || !isIdentChar(s[next]) {
			return pos
		}
		offset = next
	}
}

func isIdentChar(c byte) bool {
	return c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// declareCustomProperty inserts `--name: value;` on its own line before the
// first line that uses --name.
func declareCustomProperty(body, name, value string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if indexCustomProperty(line, name) < 0 {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		decl := indent + "--" + name + ": " + value + ";"

		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:i]...)
		out = append(out, decl)
		out = append(out, lines[i:]...)
		return strings.Join(out, "\n")
	}
	return body
}

// resolvePointers replaces $value("<directive>/pointer") tokens with the
// addressed field of record. Unresolved pointers render as nothing.
func resolvePointers(body, directive string, record data.Record) string {
	pattern := regexp.MustCompile(`\$value\((["'])` + regexp.QuoteMeta(directive) + `(/[^"']*)?["']\)`)

	return pattern.ReplaceAllStringFunc(body, func(token string) string {
		match := pattern.FindStringSubmatch(token)
		if record == nil {
			return ""
		}
		value, _ := data.Lookup(record, match[2])
		return value
	})
}
