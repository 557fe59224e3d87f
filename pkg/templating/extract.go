package templating

import (
	"regexp"
	"strings"
)

// mustacheRe matches {{...}} and {{{...}}} tags. Inner braces are not allowed,
// so a malformed tag simply fails to match.
var mustacheRe = regexp.MustCompile(`\{\{\{?~?\s*([^{}]*?)\s*~?\}?\}\}`)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*$`)

// Block helpers whose first argument is the bound expression.
var blockHelpers = map[string]bool{
	"each":   true,
	"if":     true,
	"unless": true,
	"with":   true,
}

// Inline helpers whose arguments are expressions.
var inlineHelpers = map[string]bool{
	"lookup": true,
	"log":    true,
	"equal":  true,
}

var literals = map[string]bool{
	"this":      true,
	"true":      true,
	"false":     true,
	"null":      true,
	"undefined": true,
}

// ExtractVariables returns the root variable names referenced by the given
// templates, deduplicated in order of first appearance.
func ExtractVariables(templates ...string) []string {
	seen := make(map[string]bool)
	vars := make([]string, 0)

	add := func(expr string) {
		name := rootName(expr)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		vars = append(vars, name)
	}

	for _, src := range templates {
		for _, m := range mustacheRe.FindAllStringSubmatch(src, -1) {
			for _, expr := range tagExpressions(m[1]) {
				add(expr)
			}
		}
	}

	return vars
}

// tagExpressions returns the candidate expressions of a single tag body.
func tagExpressions(tag string) []string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}

	switch tag[0] {
	case '!', '/', '>':
		return nil
	case '&':
		tag = tag[1:]
	case '^':
		tag = tag[1:]
		if tag == "" {
			return nil
		}
	case '#':
		tag = tag[1:]
		fields := strings.Fields(tag)
		if len(fields) == 0 {
			return nil
		}
		if blockHelpers[fields[0]] {
			return arguments(fields[1:])
		}
		return fields[:1]
	}

	fields := strings.Fields(tag)
	if len(fields) == 0 {
		return nil
	}

	if fields[0] == "else" {
		if len(fields) > 1 && blockHelpers[fields[1]] {
			return arguments(fields[2:])
		}
		return nil
	}

	if inlineHelpers[fields[0]] {
		return arguments(fields[1:])
	}

	return fields[:1]
}

// arguments drops block params, string and number literals and keeps
// the value side of hash arguments.
func arguments(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "as" || strings.HasPrefix(f, "|") {
			break
		}
		if _, v, ok := strings.Cut(f, "="); ok {
			f = v
		}
		f = strings.Trim(f, "()")
		if f == "" || strings.ContainsAny(f[:1], `"'0123456789-`) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// rootName reduces a path expression like ../a.b/c or [a].b to its root segment.
func rootName(expr string) string {
	for strings.HasPrefix(expr, "../") {
		expr = expr[3:]
	}
	if strings.HasPrefix(expr, "@") || strings.HasPrefix(expr, "this.") || strings.HasPrefix(expr, "this/") {
		return ""
	}

	root := expr
	if i := strings.IndexAny(root, "./"); i >= 0 {
		root = root[:i]
	}
	root = strings.TrimSuffix(strings.TrimPrefix(root, "["), "]")

	if literals[root] || !identRe.MatchString(root) {
		return ""
	}
	return root
}
