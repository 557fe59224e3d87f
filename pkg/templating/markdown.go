package templating

import (
	"bytes"
	"errors"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dmitrymomot/notemail/pkg/sanitizer"
)

// Markdown converts note content to sanitized HTML suitable for a raw
// {{{...}}} slot. It is safe for concurrent use.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates a converter with GFM tables, strikethrough, autolinks
// and the button extension enabled. Raw HTML in the source is not passed through.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.Table,
				extension.Strikethrough,
				extension.Linkify,
				ButtonExtension(),
			),
		),
	}
}

// ToHTML converts src and sanitizes the result with the email allow-list.
func (m *Markdown) ToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(src), &buf); err != nil {
		return "", errors.Join(ErrRenderFailed, err)
	}
	return sanitizer.HTML(buf.String()), nil
}
