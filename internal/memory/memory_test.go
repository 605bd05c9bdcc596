package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/jampass/internal/types"
)

func TestChecksumDeterministic(t *testing.T) {
	assert.Equal(t, Checksum("hello"), Checksum("hello"))
	assert.NotEqual(t, Checksum("hello"), Checksum("hello!"))
	assert.Regexp(t, `^[0-9a-f]+$`, Checksum("<div></div>"))
}

func TestChangedAndRemember(t *testing.T) {
	m := New()

	assert.True(t, m.Changed("index.html", "a"), "unseen files are changed")

	m.Remember("index.html", "a")
	assert.False(t, m.Changed("index.html", "a"))
	assert.True(t, m.Changed("index.html", "b"))

	sum, ok := m.Fingerprint("index.html")
	require.True(t, ok)
	assert.Equal(t, Checksum("a"), sum)

	m.Forget("index.html")
	assert.True(t, m.Changed("index.html", "a"))
}

func TestSignalsForceReprocessing(t *testing.T) {
	signals := []types.Signal{
		types.SignalEditedComponent,
		types.SignalEditedAsset,
		types.SignalEditedEnv,
	}

	for _, s := range signals {
		t.Run(string(s), func(t *testing.T) {
			m := New()
			m.Remember("index.html", "a")
			require.False(t, m.Changed("index.html", "a"))

			m.Signal(s)
			assert.True(t, m.Signaled(s))
			assert.True(t, m.Changed("index.html", "a"))

			m.ResetSignals()
			assert.False(t, m.Signaled(s))
			assert.False(t, m.Changed("index.html", "a"))
		})
	}
}

func TestDependentsFollowsReverseEdges(t *testing.T) {
	m := New()
	m.Link([]types.LinkedAsset{
		{File: "index.html", Asset: "components/layout.html", IsComponent: true},
		{File: "about.html", Asset: "components/layout.html", IsComponent: true},
		{File: "components/layout.html", Asset: "components/nav.html", IsComponent: true},
		{File: "components/nav.html", Asset: "css/nav.css"},
		{File: "index.html", Asset: "img/logo.png"},
	})

	assert.Equal(t,
		[]string{"about.html", "components/layout.html", "components/nav.html", "index.html"},
		m.Dependents("css/nav.css"))
	assert.Equal(t, []string{"index.html"}, m.Dependents("img/logo.png"))
	assert.Empty(t, m.Dependents("index.html"))
	assert.Equal(t, []string{"about.html", "index.html"}, m.Referencing("components/layout.html"))
	assert.True(t, m.IsLinked("img/logo.png"))
	assert.False(t, m.IsLinked("missing.png"))
}

func TestDependentsToleratesCycles(t *testing.T) {
	m := New()
	m.Link([]types.LinkedAsset{
		{File: "a.html", Asset: "b.html", IsComponent: true},
		{File: "b.html", Asset: "a.html", IsComponent: true},
	})

	assert.Equal(t, []string{"b.html"}, m.Dependents("a.html"))
	assert.Equal(t, []string{"a.html"}, m.Dependents("b.html"))
}

func TestClearKeepsGraph(t *testing.T) {
	m := New()
	m.Remember("index.html", "a")
	m.Link([]types.LinkedAsset{{File: "index.html", Asset: "style.css"}})

	m.Clear()

	assert.True(t, m.Changed("index.html", "a"))
	assert.Equal(t, []string{"index.html"}, m.Dependents("style.css"))
	assert.Equal(t, map[string][]string{"style.css": {"index.html"}}, m.Graph())
}

func TestLinkIgnoresEmptyEdges(t *testing.T) {
	m := New()
	m.Link([]types.LinkedAsset{{File: "", Asset: "x"}, {File: "y", Asset: ""}})
	assert.Empty(t, m.Graph())
}

func TestPools(t *testing.T) {
	m := New()

	m.QueueStyle(".a { color: red; }")
	m.QueueStyle(".b { color: blue; }")
	m.QueueStyle(".a { color: red; }")
	m.QueueStyle("   ")
	assert.False(t, m.PendingScripts())

	assert.Equal(t, ".a { color: red; }\n.b { color: blue; }", m.FlushStyles())
	assert.Empty(t, m.FlushStyles(), "flush empties the pool")

	m.QueueScript("console.log(1)")
	assert.True(t, m.PendingScripts())
	assert.Equal(t, "console.log(1)", m.FlushScripts())
	assert.False(t, m.PendingScripts())
}

func TestWatchMode(t *testing.T) {
	m := New()
	assert.False(t, m.WatchMode())
	m.SetWatchMode(true)
	assert.True(t, m.WatchMode())
}

func TestPoolKeysOnContent(t *testing.T) {
	p := newPool()
	p.add("  .a { color: red; }\n")
	p.add(".a { color: red; }")
	p.add(".b { color: red; }")

	assert.Equal(t, 2, p.len())
	assert.Contains(t, p.seen, ".a { color: red; }")
	assert.Contains(t, p.seen, ".b { color: red; }")
}
