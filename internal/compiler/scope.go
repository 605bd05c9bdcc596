package compiler

import (
	"fmt"
	"strings"
)

const (
	attrScope    = "data-x-scope"
	attrNested   = "data-x-nested"
	attrName     = "data-x-name"
	attrInstance = "data-x-instance"

	queryToken        = "$find"
	queryFactoryToken = "__xQueryByScope"
)

// scopeCSS rewrites every selector line of css so the rule only applies
// inside the element carrying data-x-scope="scope", and not inside nested
// component instances rendered below it.
//
// A selector line is not an at-rule, and the text before its "{" (or the
// whole line when the brace follows on a later line) holds none of ":", "}"
// or ";". Id selectors are left global.
func scopeCSS(css, scope string) string {
	lines := strings.Split(css, "\n")

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "@") {
			continue
		}

		selector, rule := trimmed, ""
		if idx := strings.Index(trimmed, "{"); idx >= 0 {
			selector, rule = trimmed[:idx], trimmed[idx:]
		}
		selector = strings.TrimSpace(selector)

		if selector == "" || strings.HasPrefix(selector, "#") || strings.ContainsAny(selector, ":};") {
			continue
		}

		parts := strings.Split(selector, ",")
		scoped := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			scoped = append(scoped, scopeSelector(part, scope))
		}

		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		rewritten := indent + strings.Join(scoped, ", ")
		if strings.HasSuffix(selector, ",") {
			rewritten += ","
		}
		if rule != "" {
			rewritten += " " + rule
		}
		lines[i] = rewritten
	}

	return strings.Join(lines, "\n")
}

func scopeSelector(selector, scope string) string {
	return fmt.Sprintf(`[%s="%s"] %s, [%s="%s"]> :not([%s="true"]) %s`,
		attrScope, scope, selector, attrScope, scope, attrNested, selector)
}

// scopeJS wraps js in a function named after scope and binds $find to a
// query confined to this component instance.
func scopeJS(js, scope string, instance int) string {
	finder := "find_" + scope
	body := strings.Trim(strings.ReplaceAll(js, queryToken, finder), "\n")

	return fmt.Sprintf("(function x_%s() {\nfunction %s(sel) { return %s(sel, %q, %d); }\n%s\n})();",
		scope, finder, queryFactoryToken, scope, instance, body)
}

// wrapFragmentJS keeps fragment scripts out of the page's global scope
// without rewriting them.
func wrapFragmentJS(js string) string {
	return "{\n" + strings.Trim(js, "\n") + "\n}"
}
