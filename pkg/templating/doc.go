// Package templating compiles and renders Handlebars email templates.
//
// A template is a subject pattern plus a body pattern. Rendering binds a
// flat variable map into both, sanitizes the HTML body against the email
// allow-list from pkg/sanitizer and derives a plain-text alternative.
//
//	r := templating.NewRenderer()
//	defer r.Close()
//
//	out, err := r.Render(ctx, "<p>{{{note_content_html}}}</p>", "{{note_title}}", map[string]any{
//	    "note_title":        "Trip",
//	    "note_content_html": "<h1>Hi</h1>",
//	})
//
// Escaped interpolation ({{name}}) HTML-encodes the value. Only the triple
// stash form ({{{name}}}) inserts a value verbatim, and is meant for
// fragments that were already sanitized, such as the output of
// Markdown.ToHTML.
//
// Variables referenced by a template but missing from the bindings render
// as the literal placeholder "[name]" instead of failing. Note that a
// placeholder is a non-empty string, so {{#if missing}} takes the truthy
// branch.
//
// ExtractVariables is a lexical scan, not a parser. It reports root names
// only and never fails on malformed input.
package templating
