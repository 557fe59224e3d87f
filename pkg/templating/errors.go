package templating

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateSyntax indicates a subject or body failed to compile.
	ErrTemplateSyntax = errors.New("templating: template syntax error")

	// ErrRenderFailed indicates a compiled template failed during execution.
	ErrRenderFailed = errors.New("templating: failed to render template")

	// ErrInvalidFrontmatter indicates a template document has malformed YAML front matter.
	ErrInvalidFrontmatter = errors.New("templating: invalid frontmatter")
)

// Template fields reported in syntax errors.
const (
	FieldSubject = "subject"
	FieldBody    = "body"
)

// SyntaxError reports which template field failed to compile.
type SyntaxError struct {
	Field string
	Err   error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("templating: %s: %v", e.Field, e.Err)
}

// Unwrap lets errors.Is match both ErrTemplateSyntax and the parser error.
func (e *SyntaxError) Unwrap() []error {
	return []error{ErrTemplateSyntax, e.Err}
}
