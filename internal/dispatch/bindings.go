package dispatch

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/notemail/internal/store"
	"github.com/dmitrymomot/notemail/pkg/locale"
	"github.com/dmitrymomot/notemail/pkg/templating"
)

// Binding names exposed to templates.
const (
	VarNoteTitle       = "note_title"
	VarNoteContent     = "note_content"
	VarNoteContentHTML = "note_content_html"
	VarNoteCreatedAt   = "note_created_at"
	VarNoteUpdatedAt   = "note_updated_at"
	VarToday           = "today"
	VarNow             = "now"
	VarCurrentYear     = "current_year"
	VarCurrentMonth    = "current_month"
	VarCurrentDate     = "current_date"
)

// NoteBindings builds the variables a template sees for n. The markdown
// content is converted and sanitized before binding, so templates insert
// it with raw interpolation.
func NoteBindings(n *store.Note, md *templating.Markdown, now time.Time, loc locale.Locale) (map[string]any, error) {
	contentHTML, err := md.ToHTML(n.Content)
	if err != nil {
		return nil, fmt.Errorf("dispatch: convert note %s: %w", n.ID, err)
	}

	now = now.UTC()
	return map[string]any{
		VarNoteTitle:       n.Title,
		VarNoteContent:     n.Content,
		VarNoteContentHTML: contentHTML,
		VarNoteCreatedAt:   n.CreatedAt.UTC().Format(time.RFC3339),
		VarNoteUpdatedAt:   n.UpdatedAt.UTC().Format(time.RFC3339),
		VarToday:           now.Format(time.DateOnly),
		VarNow:             now.Format(time.RFC3339),
		VarCurrentYear:     now.Year(),
		VarCurrentMonth:    loc.Month(now.Month()),
		VarCurrentDate:     loc.ShortDate(now),
	}, nil
}
