package templating

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

var frontmatterDelim = []byte("---")

// Document is a template file: YAML front matter followed by the body.
//
//	---
//	name: weekly-digest
//	subject: "Digest: {{note_title}}"
//	---
//	<h1>{{note_title}}</h1>
type Document struct {
	Name     string         `yaml:"name"`
	Subject  string         `yaml:"subject"`
	Metadata map[string]any `yaml:"-"`
	Body     string         `yaml:"-"`
}

// ParseDocument splits content into front matter and body. Content without
// a leading delimiter is treated as body only.
func ParseDocument(content []byte) (*Document, error) {
	if !bytes.HasPrefix(content, frontmatterDelim) {
		return &Document{Metadata: map[string]any{}, Body: string(content)}, nil
	}

	rest := bytes.TrimLeft(bytes.TrimPrefix(content, frontmatterDelim), "\r\n")
	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: no content after opening delimiter", ErrInvalidFrontmatter)
	}

	end := bytes.Index(rest, frontmatterDelim)
	if end == -1 {
		return nil, fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontmatter)
	}

	head := rest[:end]
	body := rest[end+len(frontmatterDelim):]
	switch {
	case bytes.HasPrefix(body, []byte("\r\n")):
		body = body[2:]
	case bytes.HasPrefix(body, []byte("\n")):
		body = body[1:]
	}

	doc := &Document{Metadata: map[string]any{}, Body: string(body)}
	if len(bytes.TrimSpace(head)) == 0 {
		return doc, nil
	}
	if err := yaml.Unmarshal(head, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
	}
	if err := yaml.Unmarshal(head, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
	}
	return doc, nil
}
