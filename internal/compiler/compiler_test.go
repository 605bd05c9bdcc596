package compiler

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/jampass/internal/data"
	"github.com/conneroisu/jampass/internal/errors"
	"github.com/conneroisu/jampass/internal/memory"
	"github.com/conneroisu/jampass/internal/paths"
	"github.com/conneroisu/jampass/internal/types"
)

// mapSource serves files from memory
type mapSource map[string]string

func (m mapSource) ReadFile(path string) (string, error) {
	content, ok := m[path]
	if !ok {
		return "", os.ErrNotExist
	}
	return content, nil
}

func (m mapSource) Exists(path string) bool {
	_, ok := m[path]
	return ok
}

func newTestCompiler(files mapSource, provider data.Provider) (*Compiler, *memory.Memory) {
	if files == nil {
		files = mapSource{}
	}
	mem := memory.New()
	return New(mem, files, paths.NewResolver(""), provider, nil), mem
}

func compileDoc(t *testing.T, c *Compiler, source string) *Output {
	t.Helper()
	out, err := c.Transform(source, "index.html")
	require.NoError(t, err)
	return out
}

var scopeAttr = regexp.MustCompile(`data-x-scope="([0-9a-f]*)"`)

func scopes(code string) []string {
	var ids []string
	for _, m := range scopeAttr.FindAllStringSubmatch(code, -1) {
		ids = append(ids, m[1])
	}
	return ids
}

func TestEndToEndCard(t *testing.T) {
	source := `<template id="x-card" data-props="t:Hi"><div>$value("t")</div></template><x-card/>`
	body := `<template id="x-card" data-props="t:Hi"><div>$value("t")</div></template>`
	expected := fmt.Sprintf(
		`<div data-x-scope="%s" data-x-nested="false" data-x-name="x-card" data-x-instance="0">Hi</div>`,
		memory.Checksum(body+"0"))

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)
	assert.Equal(t, expected, out.Code)
	assert.Empty(t, out.Diagnostics)
	assert.Empty(t, out.Linked)

	again, _ := newTestCompiler(nil, nil)
	assert.Equal(t, expected, compileDoc(t, again, source).Code, "scope id is stable across compiles")
}

func TestIdempotence(t *testing.T) {
	files := mapSource{"logo.png": "png"}

	compiled := strings.Join([]string{
		`<!DOCTYPE html>`,
		`<html>`,
		`<head>`,
		`  <link rel="stylesheet" href="https://cdn.example.com/site.css">`,
		`  <style data-namespace="_x_style">`,
		`  [data-x-scope="1a2b"] .box { color: red; }`,
		`  </style>`,
		`</head>`,
		``,
		`<body>`,
		`  <!-- a comment`,
		`       spanning lines -->`,
		`  <img src="logo.png" alt="logo">`,
		`  <div data-x-scope="1a2b" data-x-nested="false" data-x-name="x-card" data-x-instance="0">Hi</div>`,
		"\t<p>tabs   and   spaces</p>   ",
		`</body>`,
		`</html>`,
		``,
	}, "\n")

	c, mem := newTestCompiler(files, nil)
	out := compileDoc(t, c, compiled)
	assert.Equal(t, compiled, out.Code)
	assert.Empty(t, out.Diagnostics)
	assert.Equal(t, []types.LinkedAsset{{File: "index.html", Asset: "logo.png"}}, out.Linked)
	assert.False(t, mem.PendingScripts())

	// compiling the output of a compile changes nothing
	page := "<body>\n<template id=\"x-a\"><p>a</p>\n<script>\nconsole.log(1)\n</script>\n</template>\n<x-a/>\n</body>\n"
	first := compileDoc(t, c, page).Code
	require.NotContains(t, first, "<template")
	assert.Equal(t, first, compileDoc(t, c, first).Code)
}

func TestScopeUniqueness(t *testing.T) {
	source := "<template id=\"x-card\"><p>card</p></template>\n<x-card/>\n<x-card/>\n"

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	ids := scopes(out.Code)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Contains(t, out.Code, `data-x-instance="0"`)
	assert.Contains(t, out.Code, `data-x-instance="1"`)

	again, _ := newTestCompiler(nil, nil)
	assert.Equal(t, ids, scopes(compileDoc(t, again, source).Code))
}

func TestPropRoundTrip(t *testing.T) {
	definition := strings.Join([]string{
		`<template id="x-title" data-props="title:Hello">`,
		`<h1>$value("title")</h1>`,
		`<h2>$value('title')</h2>`,
		`<p>("title")</p>`,
		`<p>('title')</p>`,
		`<style>`,
		`.title {`,
		`  color: var(--title);`,
		`}`,
		`</style>`,
		`</template>`,
	}, "\n")

	tests := []struct {
		name     string
		usage    string
		expected string
	}{
		{"declared default", `<x-title/>`, "Hello"},
		{"usage attribute", `<x-title title="Bye"/>`, "Bye"},
		{"usage default override", `<x-title data-props="title:Override"/>`, "Override"},
		{"attribute wins over override", `<x-title title="Bye" data-props="title:Override"/>`, "Bye"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCompiler(nil, nil)
			out := compileDoc(t, c, definition+"\n"+tt.usage)

			assert.Contains(t, out.Code, "<h1>"+tt.expected+"</h1>")
			assert.Contains(t, out.Code, "<h2>"+tt.expected+"</h2>")
			assert.Equal(t, 2, strings.Count(out.Code, "<p>"+tt.expected+"</p>"))
			assert.Contains(t, out.Code, "--title: "+tt.expected+";")
			assert.Contains(t, out.Code, "var(--title)")
			assert.NotContains(t, out.Code, `$value`)
			assert.NotContains(t, out.Code, `("title")`)
			assert.Empty(t, out.Diagnostics)
		})
	}
}

func TestUnresolvedPropSuppressesRender(t *testing.T) {
	source := "<template id=\"x-t\" data-props=\"title\"><h1>(\"title\")</h1></template>\n<p>keep</p>\n<x-t/>"

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Equal(t, "<p>keep</p>", out.Code)
	diags := out.Diagnostics
	require.Len(t, diags, 1)
	assert.Equal(t, errors.KindUnresolvedProp, diags[0].Kind)
	assert.Equal(t, "x-t", diags[0].Component)
	assert.Contains(t, diags[0].Message, "title")
}

func TestUnreferencedPropWithoutValue(t *testing.T) {
	source := `<template id="x-t" data-props="unused"><h1>static</h1></template><x-t/>`

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Contains(t, out.Code, ">static</h1>")
	assert.Empty(t, out.Diagnostics)
}

func TestSlotFidelity(t *testing.T) {
	source := strings.Join([]string{
		`<template id="x-greet"><div><slot name="greeting"></slot><slot></slot></div></template>`,
		`<x-greet><span slot="greeting">Hi</span><b>rest</b></x-greet>`,
	}, "\n")

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Contains(t, out.Code, "<span>Hi</span><b>rest</b></div>")
	assert.NotContains(t, out.Code, "<slot")
	assert.NotContains(t, out.Code, `slot="greeting"`)
	assert.Empty(t, out.Diagnostics)
}

func TestSlotsAcrossLines(t *testing.T) {
	source := strings.Join([]string{
		`<template id="x-layout">`,
		`<main>`,
		`  <header><slot name="title"></slot></header>`,
		`  <slot></slot>`,
		`</main>`,
		`</template>`,
		`<x-layout>`,
		`  <h1 slot="title">Welcome</h1>`,
		`  <p>first</p>`,
		`  <p>second</p>`,
		`</x-layout>`,
		`<footer>end</footer>`,
	}, "\n")

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Contains(t, out.Code, "<header><h1>Welcome</h1></header>")
	assert.Contains(t, out.Code, "<p>first</p>\n  <p>second</p>")
	assert.True(t, strings.HasSuffix(out.Code, "</main>\n<footer>end</footer>"))
}

func TestCSSIsolationOfNestedChild(t *testing.T) {
	source := strings.Join([]string{
		`<template id="x-child"><div class="box">child</div>`,
		`<style>`,
		`.box { color: blue; }`,
		`</style>`,
		`</template>`,
		`<template id="x-parent"><section><div class="box">parent</div><x-child/></section>`,
		`<style>`,
		`.box { color: red; }`,
		`</style>`,
		`</template>`,
		`<x-parent/>`,
	}, "\n")

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Contains(t, out.Code, `data-x-nested="true" data-x-name="x-child"`)
	assert.Contains(t, out.Code, `data-x-nested="false" data-x-name="x-parent"`)

	ids := scopes(out.Code)
	// two instances, then two selectors per scoped rule
	require.Len(t, ids, 6)
	parent := ids[0]
	assert.Contains(t, out.Code,
		fmt.Sprintf(`[data-x-scope="%s"] .box, [data-x-scope="%s"]> :not([data-x-nested="true"]) .box { color: red; }`, parent, parent))
	assert.Equal(t, 1, strings.Count(out.Code, `<style data-namespace="_x_style">`))
	assert.Empty(t, out.Diagnostics)
}

func TestDirectiveExpansion(t *testing.T) {
	provider := data.StaticProvider{
		{"name": "a", "data": map[string]any{"title": "Alpha"}},
		{"name": "b", "data": map[string]any{"title": "Beta"}},
		{"name": "c", "data": map[string]any{"title": "Gamma"}},
	}
	source := "<template id=\"x-post\"><article>$value(\"item/data/title\")$value(\"item/data/missing\")</article></template>\n<x-post :for-each=\"item\"/>"

	c, _ := newTestCompiler(nil, provider)
	out := compileDoc(t, c, source)

	assert.Equal(t, 3, strings.Count(out.Code, `data-x-name="x-post"`))
	for i, title := range []string{"Alpha", "Beta", "Gamma"} {
		assert.Contains(t, out.Code, fmt.Sprintf(`data-x-instance="%d">%s</article>`, i, title))
	}

	ids := scopes(out.Code)
	require.Len(t, ids, 3)
	assert.NotEqual(t, ids[0], ids[1])
	assert.NotEqual(t, ids[1], ids[2])
	assert.NotContains(t, out.Code, ":for-each")
	assert.Empty(t, out.Diagnostics)
}

func TestUndefinedUsageIsDropped(t *testing.T) {
	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, "<p>before</p>\n<x-missing/>\n<p>after</p>")

	assert.Equal(t, "<p>before</p>\n<p>after</p>", out.Code)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, errors.KindUndefinedComponent, out.Diagnostics[0].Kind)
	assert.Equal(t, "x-missing", out.Diagnostics[0].Component)
	assert.Equal(t, 2, out.Diagnostics[0].Line)
	assert.Equal(t, "<x-missing/>", out.Diagnostics[0].Source)
}

func TestUndefinedPairedUsageDropsChildren(t *testing.T) {
	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, "<div><x-nope>\n<p>child</p>\n</x-nope></div>")

	assert.Equal(t, "<div></div>", out.Code)
	require.Len(t, out.Diagnostics, 1)
}

func TestUnusedDefinitionWarning(t *testing.T) {
	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, "<template id=\"x-idle\"><p>idle</p></template>\n<p>page</p>")

	assert.Equal(t, "<p>page</p>", out.Code)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, errors.KindUnusedComponent, out.Diagnostics[0].Kind)
	assert.Equal(t, errors.ErrorSeverityWarning, out.Diagnostics[0].Severity)
	assert.False(t, out.HasErrors())
}

func TestCommentsAreCopiedVerbatim(t *testing.T) {
	source := "<!-- <x-card/> -->\n<!--\n<x-other/>\n<template id=\"x-t\"></template>\n-->\n<p>x</p>"

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Equal(t, source, out.Code)
	assert.Empty(t, out.Diagnostics)
}

func TestUsageAfterInlineCommentIsIgnored(t *testing.T) {
	source := "<p>x</p><!-- <x-card/> -->"

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Equal(t, source, out.Code)
	assert.Empty(t, out.Diagnostics)
}

func TestFragment(t *testing.T) {
	source := strings.Join([]string{
		`<template id="x-items" data-fragment="true"><li>a</li><li>b</li>`,
		`<style>`,
		`li { margin: 0; }`,
		`</style>`,
		`<script>`,
		`console.log("items")`,
		`</script>`,
		`</template>`,
		`<ul><x-items/></ul>`,
	}, "\n")

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.True(t, strings.HasPrefix(out.Code, "<ul><li>a</li><li>b</li></ul>"))
	assert.NotContains(t, out.Code, "data-x-name")
	assert.Contains(t, out.Code, "li { margin: 0; }")
	assert.Contains(t, out.Code, "{\nconsole.log(\"items\")\n}")
	assert.Contains(t, out.Code, `<script id="_x_core_script">`)
}

func TestPooledBlocksPlacement(t *testing.T) {
	source := strings.Join([]string{
		`<html>`,
		`<head>`,
		`<title>t</title>`,
		`</head>`,
		`<body class="page">`,
		`<template id="x-btn"><button>go</button>`,
		`<style>`,
		`button { color: red; }`,
		`</style>`,
		`<script>`,
		`$find("button")(el => el.remove());`,
		`</script>`,
		`</template>`,
		`<x-btn/>`,
		`</body>`,
		`</html>`,
	}, "\n")

	c, mem := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)
	code := out.Code

	ids := scopes(code)
	require.NotEmpty(t, ids)
	id := ids[0]

	style := strings.Index(code, `<style data-namespace="_x_style">`)
	head := strings.Index(code, "</head>")
	core := strings.Index(code, `<script id="_x_core_script">`)
	bodyOpen := strings.Index(code, `<body class="page">`)
	script := strings.Index(code, `<script data-namespace="_x_script">`)
	bodyClose := strings.Index(code, "</body>")

	require.True(t, style >= 0 && core >= 0 && script >= 0)
	assert.Less(t, style, head)
	assert.Less(t, bodyOpen, core)
	assert.Less(t, core, script)
	assert.Less(t, script, bodyClose)

	assert.Contains(t, code, fmt.Sprintf(`(function x_%s() {`, id))
	assert.Contains(t, code, fmt.Sprintf(`function find_%s(sel) { return __xQueryByScope(sel, "%s", 0); }`, id, id))
	assert.Contains(t, code, fmt.Sprintf(`find_%s("button")(el => el.remove());`, id))
	assert.Contains(t, code, "function __xQueryByScope(selector, scope, instance)")
	assert.NotContains(t, code, "$find")

	assert.False(t, mem.PendingScripts(), "pools are flushed into the page")
	assert.Empty(t, mem.FlushStyles())
}

func TestLinkedComponent(t *testing.T) {
	card := `<template id="x-card" data-props="t:Hi"><div>$value("t")</div></template>`
	files := mapSource{"card.html": card}

	c, _ := newTestCompiler(files, nil)
	out := compileDoc(t, c, "<link rel=\"component\" href=\"./card.html\" id=\"x-card\">\n<x-card t=\"Yo\"/>")

	expected := fmt.Sprintf(
		`<div data-x-scope="%s" data-x-nested="false" data-x-name="x-card" data-x-instance="0">Yo</div>`,
		memory.Checksum(card+"0"))
	assert.Equal(t, expected, out.Code)
	assert.Equal(t, []types.LinkedAsset{{File: "index.html", Asset: "card.html", IsComponent: true}}, out.Linked)
	assert.Empty(t, out.Diagnostics)

	require.Len(t, out.Definitions, 1)
	assert.Equal(t, "x-card", out.Definitions[0].ID)
	assert.Equal(t, "card.html", out.Definitions[0].File)
	assert.Equal(t, 1, out.Definitions[0].Usages)
}

func TestLinkedComponentAssetsAreAttributedToComponentFile(t *testing.T) {
	files := mapSource{
		"components/nav.html": `<template id="x-nav"><nav><img src="../img/logo.png"></nav></template>`,
		"img/logo.png":        "png",
	}

	c, _ := newTestCompiler(files, nil)
	out := compileDoc(t, c, "<link rel=\"component\" href=\"components/nav.html\" id=\"x-nav\">\n<x-nav/>")

	assert.ElementsMatch(t, []types.LinkedAsset{
		{File: "index.html", Asset: "components/nav.html", IsComponent: true},
		{File: "components/nav.html", Asset: "img/logo.png"},
	}, out.Linked)
	assert.Contains(t, out.Code, `<img src="../img/logo.png">`)
}

func TestMissingLinkedAssets(t *testing.T) {
	source := "<img src=\"nope.png\">\n<link rel=\"component\" href=\"./nope.html\" id=\"x-nope\">\n<script src=\"https://cdn.example.com/lib.js\"></script>"

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Equal(t, "<img src=\"nope.png\">\n<script src=\"https://cdn.example.com/lib.js\"></script>", out.Code)
	assert.Empty(t, out.Linked)
	require.Len(t, out.Diagnostics, 2)
	for _, d := range out.Diagnostics {
		assert.Equal(t, errors.KindMissingLinkedAsset, d.Kind)
	}
}

func TestCyclicComponentLink(t *testing.T) {
	files := mapSource{
		"a.html": `<template id="x-a"><link rel="component" href="./a.html" id="x-a"><p>a</p></template>`,
	}

	c, _ := newTestCompiler(files, nil)
	out := compileDoc(t, c, "<link rel=\"component\" href=\"./a.html\" id=\"x-a\">\n<x-a/>")

	assert.Contains(t, out.Code, `data-x-name="x-a" data-x-instance="0">a</p>`)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, errors.KindMalformedComponent, out.Diagnostics[0].Kind)
}

func TestMalformedComponentBody(t *testing.T) {
	files := mapSource{"bad.html": "<div>not a template</div>"}

	c, _ := newTestCompiler(files, nil)
	out := compileDoc(t, c, "<link rel=\"component\" href=\"bad.html\" id=\"x-bad\">\n<p>page</p>\n<x-bad/>")

	assert.Equal(t, "<p>page</p>", out.Code)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, errors.KindMalformedComponent, out.Diagnostics[0].Kind)
	assert.True(t, out.HasErrors())
}

func TestComponentReadFailure(t *testing.T) {
	c := New(memory.New(), failingSource{}, paths.NewResolver(""), nil, nil)

	_, err := c.Transform("<link rel=\"component\" href=\"card.html\" id=\"x-card\">", "index.html")
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
	assert.ErrorIs(t, err, os.ErrPermission)
}

type failingSource struct{}

func (failingSource) ReadFile(string) (string, error) { return "", os.ErrPermission }
func (failingSource) Exists(string) bool              { return true }

func TestMultiLineUsageTag(t *testing.T) {
	source := "<template id=\"x-card\" data-props=\"t:Hi\"><b>(\"t\")</b></template>\n<p><x-card\n  t=\"Multi\"\n/></p>"

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Contains(t, out.Code, `data-x-instance="0">Multi</b></p>`)
	assert.True(t, strings.HasPrefix(out.Code, "<p><b "))
}

func TestNestedSameNameUsage(t *testing.T) {
	source := strings.Join([]string{
		`<template id="x-box"><div class="box"><slot></slot></div></template>`,
		`<x-box>`,
		`<x-box><i>inner</i></x-box>`,
		`</x-box>`,
	}, "\n")

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Equal(t, 2, strings.Count(out.Code, `data-x-name="x-box"`))
	assert.Contains(t, out.Code, "<i>inner</i></div>")
	assert.True(t, strings.HasSuffix(out.Code, "</div></div>"))
	assert.Empty(t, out.Diagnostics)
}

func TestUnpairedOpenTagWithoutClose(t *testing.T) {
	source := "<template id=\"x-hr\"><hr></template>\n<x-hr>\n<p>after</p>"

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Contains(t, out.Code, `<hr data-x-scope=`)
	assert.True(t, strings.HasSuffix(out.Code, "\n<p>after</p>"))
}

func TestDefinitionsAreLexicallyScoped(t *testing.T) {
	source := strings.Join([]string{
		`<template id="x-outer"><div>`,
		`<template id="x-inner"><span>in</span></template>`,
		`<x-inner/>`,
		`</div></template>`,
		`<x-outer/>`,
		`<x-inner/>`,
	}, "\n")

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Contains(t, out.Code, `data-x-nested="true" data-x-name="x-inner"`)
	undefined := 0
	for _, d := range out.Diagnostics {
		if d.Kind == errors.KindUndefinedComponent {
			undefined++
			assert.Equal(t, "x-inner", d.Component)
		}
	}
	assert.Equal(t, 1, undefined, "inner definitions are not visible to the page")
}

func TestDefinitionRecordsLastUsage(t *testing.T) {
	c, _ := newTestCompiler(nil, nil)
	sc := newScope(nil)
	tr := &transform{ctx: t.Context(), compiler: c, diagnostics: errors.NewDiagnosticCollector(), inProgress: map[string]bool{}}

	_, err := tr.compile("<template id=\"x-c\" data-props=\"a\"><p>(\"a\")</p></template>\n<x-c a=\"1\">kid</x-c>", "index.html", 1, sc, modeDocument)
	require.NoError(t, err)

	def := sc.lookup("x-c")
	require.NotNil(t, def)
	assert.Equal(t, 1, def.Usages)
	assert.Equal(t, `<x-c a="1">`, def.LastTag)
	assert.Equal(t, "kid", def.LastChildren)
	require.Contains(t, def.LastProps, "a")
	assert.Equal(t, "1", def.LastProps["a"].Value)
}

func TestUnusedOuterDefinitionQueuesNothing(t *testing.T) {
	source := strings.Join([]string{
		`<template id="x-inner"><div class="in">in</div>`,
		`<style>`,
		`.in { color: red; }`,
		`</style>`,
		`<script>`,
		`$find(".in")(el => el.remove());`,
		`</script>`,
		`</template>`,
		`<template id="x-outer"><section><x-inner/></section></template>`,
		`<p>page</p>`,
	}, "\n")

	c, mem := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Equal(t, "<p>page</p>", out.Code)
	assert.NotContains(t, out.Code, "_x_style")
	assert.NotContains(t, out.Code, "_x_script")
	assert.NotContains(t, out.Code, "_x_core_script")
	assert.NotContains(t, out.Code, "find_")
	assert.Empty(t, mem.FlushStyles())
	assert.False(t, mem.PendingScripts())

	unused := make([]string, 0, len(out.Diagnostics))
	for _, d := range out.Diagnostics {
		assert.Equal(t, errors.KindUnusedComponent, d.Kind)
		unused = append(unused, d.Component)
	}
	assert.Contains(t, unused, "x-outer")
}

func TestNestedInstancesPerOuterInstance(t *testing.T) {
	source := strings.Join([]string{
		`<template id="x-inner"><span>in</span></template>`,
		`<template id="x-outer"><section><x-inner/></section></template>`,
		`<x-outer/>`,
		`<x-outer/>`,
	}, "\n")

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Contains(t, out.Code, `data-x-nested="true" data-x-name="x-inner" data-x-instance="0"`)
	assert.Contains(t, out.Code, `data-x-nested="true" data-x-name="x-inner" data-x-instance="1"`)

	ids := scopes(out.Code)
	require.Len(t, ids, 4)
	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "scope %s is reused", id)
		seen[id] = true
	}
	assert.Empty(t, out.Diagnostics)
}

func TestNestedUsageTakesOuterProps(t *testing.T) {
	source := strings.Join([]string{
		`<template id="x-label" data-props="text"><b>$value("text")</b></template>`,
		`<template id="x-card" data-props="title:Hi"><div><x-label text='$value("title")'/></div></template>`,
		`<x-card title="One"/>`,
		`<x-card/>`,
	}, "\n")

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Contains(t, out.Code, `data-x-instance="0">One</b>`)
	assert.Contains(t, out.Code, `data-x-instance="1">Hi</b>`)
	assert.Empty(t, out.Diagnostics)
}

func TestComponentUsingItself(t *testing.T) {
	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, "<template id=\"x-loop\"><p><x-loop/></p></template>\n<x-loop/>")

	assert.Equal(t, 1, strings.Count(out.Code, `data-x-name="x-loop"`))
	assert.Contains(t, out.Code, `data-x-instance="0"></p>`)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, errors.KindMalformedComponent, out.Diagnostics[0].Kind)
	assert.Equal(t, "x-loop", out.Diagnostics[0].Component)
}

type failingProvider struct{}

func (failingProvider) Get() ([]data.Record, error) { return nil, os.ErrPermission }

func TestDirectiveWithoutRecords(t *testing.T) {
	source := "<template id=\"x-post\"><p>$value(\"item/name\")</p></template>\n<x-post :for-each=\"item\"/>"

	tests := []struct {
		name     string
		provider data.Provider
		message  string
	}{
		{"no provider", nil, "no data source"},
		{"provider error", failingProvider{}, "permission denied"},
		{"no records", data.StaticProvider{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCompiler(nil, tt.provider)
			out := compileDoc(t, c, source)

			assert.Empty(t, out.Code)
			for _, d := range out.Diagnostics {
				assert.NotEqual(t, errors.KindUnusedComponent, d.Kind, "the usage counts as a use")
			}
			if tt.message == "" {
				assert.Empty(t, out.Diagnostics)
				return
			}

			require.Len(t, out.Diagnostics, 1)
			d := out.Diagnostics[0]
			assert.Equal(t, errors.KindUnresolvedProp, d.Kind)
			assert.Equal(t, "x-post", d.Component)
			assert.Equal(t, 2, d.Line)
			assert.Equal(t, `<x-post :for-each="item"/>`, d.Source)
			assert.Contains(t, d.Message, tt.message)
		})
	}
}

func TestUndeclaredPlaceholderSuppressesRender(t *testing.T) {
	source := "<template id=\"x-t\" data-props=\"a:1\"><p>$value(\"a\") $value(\"b\")</p></template>\n<x-t/>"

	c, _ := newTestCompiler(nil, nil)
	out := compileDoc(t, c, source)

	assert.Empty(t, out.Code)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, errors.KindUnresolvedProp, out.Diagnostics[0].Kind)
	assert.Contains(t, out.Diagnostics[0].Message, "b")
}
