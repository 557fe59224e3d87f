// Package sanitizer cleans user-influenced HTML before it is emailed.
//
// [HTML] applies a fixed allow-list built on [github.com/microcosm-cc/bluemonday]:
// structural and text formatting tags plus the a, img and table families,
// the attributes href, src, alt, title and style, and the URL schemes
// http, https, mailto and tel (relative URLs allowed). Script-capable
// elements and event handler attributes are always removed.
//
// [ToText] derives the plain-text alternative of an HTML body:
//
//	text := sanitizer.ToText("<h1>Hi</h1><p>Tom &amp; Jerry</p>")
//	// "Hi\nTom & Jerry"
//
// Neither function returns an error. Bad input is degraded, never rejected.
package sanitizer
