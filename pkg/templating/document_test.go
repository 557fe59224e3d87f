package templating_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notemail/pkg/templating"
)

func TestParseDocument(t *testing.T) {
	t.Parallel()

	t.Run("front matter and body", func(t *testing.T) {
		t.Parallel()

		doc, err := templating.ParseDocument([]byte("---\nname: digest\nsubject: \"Digest: {{note_title}}\"\ntags: [a]\n---\n<p>{{note_title}}</p>\n"))
		require.NoError(t, err)
		assert.Equal(t, "digest", doc.Name)
		assert.Equal(t, "Digest: {{note_title}}", doc.Subject)
		assert.Equal(t, "<p>{{note_title}}</p>\n", doc.Body)
		assert.Contains(t, doc.Metadata, "tags")
	})

	t.Run("crlf line endings", func(t *testing.T) {
		t.Parallel()

		doc, err := templating.ParseDocument([]byte("---\r\nname: x\r\n---\r\nbody"))
		require.NoError(t, err)
		assert.Equal(t, "x", doc.Name)
		assert.Equal(t, "body", doc.Body)
	})

	t.Run("no front matter", func(t *testing.T) {
		t.Parallel()

		doc, err := templating.ParseDocument([]byte("just body"))
		require.NoError(t, err)
		assert.Empty(t, doc.Name)
		assert.Equal(t, "just body", doc.Body)
	})

	t.Run("missing closing delimiter", func(t *testing.T) {
		t.Parallel()

		_, err := templating.ParseDocument([]byte("---\nname: x\nbody"))
		assert.ErrorIs(t, err, templating.ErrInvalidFrontmatter)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		_, err := templating.ParseDocument([]byte("---\nname: [unclosed\n---\nbody"))
		assert.ErrorIs(t, err, templating.ErrInvalidFrontmatter)
	})
}
