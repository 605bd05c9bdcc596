package compiler

import (
	_ "embed"
	"strings"
)

const (
	styleNamespace  = "_x_style"
	scriptNamespace = "_x_script"
	coreScriptID    = "_x_core_script"
)

//go:embed js/client_core.js
var clientCore string

func styleTag(css string) string {
	return `<style data-namespace="` + styleNamespace + `">` + "\n" + css + "\n</style>"
}

func scriptTag(js string) string {
	return `<script data-namespace="` + scriptNamespace + `">` + "\n" + js + "\n</script>"
}

func coreScriptTag() string {
	return `<script id="` + coreScriptID + `">` + "\n" + strings.TrimRight(clientCore, "\n") + "\n</script>"
}

// insertBefore places block on its own line before the first occurrence of
// marker, or appends it when the page has no such marker.
func insertBefore(page, marker, block string) string {
	if idx := strings.Index(page, marker); idx >= 0 {
		return page[:idx] + block + "\n" + page[idx:]
	}
	return appendBlock(page, block)
}

// insertAfterOpenTag places block right after the start tag of the named
// element. ok is false when the page has no such tag.
func insertAfterOpenTag(page, name, block string) (string, bool) {
	idx := indexTag(page, name, false)
	if idx < 0 {
		return page, false
	}
	end := findTagEnd(page, idx)
	if end < 0 {
		return page, false
	}
	return page[:end+1] + "\n" + block + page[end+1:], true
}

func appendBlock(page, block string) string {
	if page == "" {
		return block
	}
	if strings.HasSuffix(page, "\n") {
		return page + block + "\n"
	}
	return page + "\n" + block
}

// flush emits the pooled style and script of one page
func flush(page, styles, scripts string) string {
	if styles != "" {
		page = insertBefore(page, "</head>", styleTag(styles))
	}
	if scripts == "" {
		return page
	}

	page = insertBefore(page, "</body>", scriptTag(scripts))
	if withCore, ok := insertAfterOpenTag(page, "body", coreScriptTag()); ok {
		return withCore
	}
	return insertBefore(page, `<script data-namespace="`+scriptNamespace+`">`, coreScriptTag())
}
