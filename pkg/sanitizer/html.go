package sanitizer

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	emailPolicy *bluemonday.Policy
	initOnce    sync.Once
)

// AllowedElements lists the tags that survive sanitization.
// Everything else is removed, keeping the inner text where applicable.
var AllowedElements = []string{
	"p", "br", "hr", "div", "span",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"strong", "b", "em", "i", "u", "s", "small", "sub", "sup",
	"ul", "ol", "li",
	"blockquote", "pre", "code",
	"a", "img",
	"table", "caption", "thead", "tbody", "tfoot", "tr", "th", "td",
}

// AllowedURLSchemes lists the schemes accepted in href and src.
// Relative URLs are accepted as well.
var AllowedURLSchemes = []string{"http", "https", "mailto", "tel"}

// allowedStyles is the CSS property allow-list applied to style attributes.
// Values are validated by bluemonday's per-property handlers, so url() and
// expression() payloads are dropped.
var allowedStyles = []string{
	"color", "background-color",
	"font-family", "font-size", "font-style", "font-weight",
	"text-align", "text-decoration", "text-transform", "line-height",
	"margin", "margin-top", "margin-right", "margin-bottom", "margin-left",
	"padding", "padding-top", "padding-right", "padding-bottom", "padding-left",
	"border", "border-collapse", "border-radius",
	"width", "max-width", "height", "vertical-align", "display",
}

func initPolicies() {
	initOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements(AllowedElements...)
		p.AllowAttrs("title", "style").Globally()
		p.AllowStyles(allowedStyles...).Globally()
		p.AllowAttrs("href").OnElements("a")
		p.AllowAttrs("src", "alt").OnElements("img")
		p.AllowURLSchemes(AllowedURLSchemes...)
		p.AllowRelativeURLs(true)
		p.RequireParseableURLs(true)
		p.SkipElementsContent("script", "style", "object", "embed", "form", "iframe")
		emailPolicy = p
	})
}

// HTML sanitizes rendered email HTML with the email allow-list.
// Tags outside the allow-list are dropped, attributes are limited to
// href, src, alt, title and style, and URLs must use http(s), mailto, tel
// or be relative. Event handler attributes never survive since no on*
// attribute is allowed on any element.
//
// HTML is idempotent: HTML(HTML(s)) == HTML(s).
func HTML(s string) string {
	initPolicies()
	return emailPolicy.Sanitize(s)
}
