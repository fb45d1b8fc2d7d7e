package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizePlainTextPassthrough(t *testing.T) {
	src := "graph TD\n  A --> B\n  B --> C\n"
	assert.Equal(t, src, Sanitize(src))
}

func TestSanitizeStripsScripts(t *testing.T) {
	out := Sanitize(`<svg><script>fetch("//evil")</script><circle r="4"/></svg>`)
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "evil")
	assert.Contains(t, out, "circle")
}

func TestSanitizeStripsEventHandlersAndJavascriptURLs(t *testing.T) {
	out := Sanitize(`<svg onload="x()"><a href="javascript:run()" xlink:href=" JAVASCRIPT:run()">n</a><a href="#node">ok</a></svg>`)
	assert.NotContains(t, out, "onload")
	assert.NotContains(t, out, "javascript")
	assert.NotContains(t, out, "JAVASCRIPT")
	assert.Contains(t, out, `href="#node"`)
}

func TestSanitizeRemovesEmbeddingElements(t *testing.T) {
	for _, markup := range []string{
		`<div><iframe src="https://x"></iframe>kept</div>`,
		`<div><object data="x"></object>kept</div>`,
		`<div><embed src="x">kept</div>`,
		`<svg><foreignObject><body onload="x"/></foreignObject><text>kept</text></svg>`,
	} {
		out := Sanitize(markup)
		assert.Contains(t, out, "kept", "input %q", markup)
		assert.NotContains(t, out, "iframe")
		assert.NotContains(t, out, "object")
		assert.NotContains(t, out, "embed")
	}
}

func TestSanitizeKeepsFullDocumentShape(t *testing.T) {
	out := Sanitize(`<!DOCTYPE html><html><body><script>x</script><p>diagram</p></body></html>`)
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "diagram")
	assert.NotContains(t, out, "script")
}

func TestSanitizeFragmentNotWrapped(t *testing.T) {
	out := Sanitize(`<svg viewBox="0 0 10 10"><rect/></svg>`)
	assert.NotContains(t, out, "<html")
	assert.NotContains(t, out, "<body")
	assert.Contains(t, out, "viewBox")
}
