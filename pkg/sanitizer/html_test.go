package sanitizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notemail/pkg/sanitizer"
)

func TestHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips script but keeps paragraph",
			input:    `<p>Hello</p><script>alert('xss')</script>`,
			expected: "<p>Hello</p>",
		},
		{
			name:     "keeps basic formatting",
			input:    `<p>Hello <strong>world</strong></p>`,
			expected: "<p>Hello <strong>world</strong></p>",
		},
		{
			name:     "keeps headings",
			input:    `<h1>Title</h1><h2>Sub</h2>`,
			expected: "<h1>Title</h1><h2>Sub</h2>",
		},
		{
			name:     "keeps https links",
			input:    `<a href="https://example.com">link</a>`,
			expected: `<a href="https://example.com">link</a>`,
		},
		{
			name:     "keeps mailto links",
			input:    `<a href="mailto:team@example.com">mail</a>`,
			expected: `<a href="mailto:team@example.com">mail</a>`,
		},
		{
			name:     "keeps tel links",
			input:    `<a href="tel:+15550100">call</a>`,
			expected: `<a href="tel:+15550100">call</a>`,
		},
		{
			name:     "keeps relative links",
			input:    `<a href="/notes/1">note</a>`,
			expected: `<a href="/notes/1">note</a>`,
		},
		{
			name:     "strips javascript links",
			input:    `<a href="javascript:alert('xss')">click</a>`,
			expected: "click",
		},
		{
			name:     "strips event handlers",
			input:    `<p onclick="alert('xss')">content</p>`,
			expected: "<p>content</p>",
		},
		{
			name:     "strips class and id",
			input:    `<p class="x" id="y">content</p>`,
			expected: "<p>content</p>",
		},
		{
			name:     "keeps tables",
			input:    `<table><tbody><tr><th>a</th><td>b</td></tr></tbody></table>`,
			expected: `<table><tbody><tr><th>a</th><td>b</td></tr></tbody></table>`,
		},
		{
			name:     "keeps divs and spans",
			input:    `<div><span>inner</span></div>`,
			expected: `<div><span>inner</span></div>`,
		},
		{
			name:     "keeps plain text",
			input:    "normal text",
			expected: "normal text",
		},
		{
			name:     "handles empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, sanitizer.HTML(tt.input))
		})
	}
}

func TestHTML_Images(t *testing.T) {
	t.Parallel()

	out := sanitizer.HTML(`<img src=x onerror=alert(1)>`)
	assert.NotContains(t, out, "onerror")
	assert.NotContains(t, out, "alert")
	assert.Contains(t, out, `src="x"`)

	out = sanitizer.HTML(`<img src="https://example.com/a.png" alt="A" width="10" onload="x()">`)
	assert.Contains(t, out, `alt="A"`)
	assert.NotContains(t, out, "width")
	assert.NotContains(t, out, "onload")
}

func TestHTML_Styles(t *testing.T) {
	t.Parallel()

	out := sanitizer.HTML(`<p style="color: red">x</p>`)
	assert.Contains(t, out, "style=")
	assert.Contains(t, out, "color")

	out = sanitizer.HTML(`<p style="background:url(javascript:alert('xss'))">x</p>`)
	assert.NotContains(t, out, "javascript")
	assert.Contains(t, out, "x")
}

func TestHTML_AlwaysRemoved(t *testing.T) {
	t.Parallel()

	vectors := map[string]string{
		"script":          `<script src="https://evil.com/x.js"></script>`,
		"object":          `<object data="data:text/html;base64,PHNjcmlwdD4="></object>`,
		"embed":           `<embed src="javascript:alert('XSS')">`,
		"form":            `<form action="javascript:alert('XSS')"><input type="submit"></form>`,
		"input":           `<input onfocus="alert('XSS')" autofocus>`,
		"iframe":          `<iframe src="javascript:alert('XSS')"></iframe>`,
		"svg onload":      `<svg onload="alert('XSS')">`,
		"data url":        `<a href="data:text/html;base64,PHNjcmlwdD4=">click</a>`,
		"vbscript":        `<a href="vbscript:msgbox('XSS')">click</a>`,
		"mixed case js":   `<a href="JaVaScRiPt:alert('XSS')">click</a>`,
		"details toggle":  `<details open ontoggle="alert('XSS')">`,
		"body onload":     `<body onload="alert('XSS')">`,
		"meta refresh":    `<meta http-equiv="refresh" content="0;url=javascript:alert('XSS')">`,
		"style exfil":     `<div style="width:expression(alert('XSS'))">`,
		"nested math img": `<math><mtext><table><mglyph><style><img src=x onerror="alert('XSS')">`,
	}

	for name, input := range vectors {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			out := sanitizer.HTML(input)
			assert.NotContains(t, out, "<script")
			assert.NotContains(t, out, "<object")
			assert.NotContains(t, out, "<embed")
			assert.NotContains(t, out, "<form")
			assert.NotContains(t, out, "<input")
			assert.NotContains(t, out, "javascript:")
			assert.NotContains(t, out, "onerror")
			assert.NotContains(t, out, "onload")
			assert.NotContains(t, out, "alert(")
		})
	}
}

func TestHTML_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		`<p>Hello <b>there</b> &amp; welcome</p>`,
		`<img src=x onerror=alert(1)><p>after</p>`,
		`<a href="https://example.com/?a=1&b=2" title="T">x</a>`,
		`<p style="color: red; font-weight: bold">styled</p>`,
		`<div><p>unclosed <em>tags`,
		`Tom & Jerry < "quotes" > 'single'`,
		`<table><tr><td onclick="x()">cell</td></tr></table>`,
		`<h1>Hi</h1><script>alert(1)</script><ul><li>one</li></ul>`,
	}

	for _, input := range inputs {
		once := sanitizer.HTML(input)
		assert.Equal(t, once, sanitizer.HTML(once), "input: %s", input)
	}
}
