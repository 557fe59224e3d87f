package store

import (
	"slices"
	"time"
)

// Note is the user-authored source of an email.
type Note struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
}

// Template is the live row of an email template.
type Template struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Variables []string  `json:"variables"`
	Version   int       `json:"version"`
	Active    bool      `json:"active"`
}

// Snapshot captures the template content as a version record.
func (t *Template) Snapshot(at time.Time) TemplateVersion {
	return TemplateVersion{
		TemplateID: t.ID,
		Version:    t.Version,
		Subject:    t.Subject,
		Body:       t.Body,
		Variables:  slices.Clone(t.Variables),
		CreatedAt:  at,
	}
}

// TemplateVersion is an immutable snapshot of a superseded template.
type TemplateVersion struct {
	CreatedAt  time.Time `json:"created_at"`
	TemplateID string    `json:"template_id"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Variables  []string  `json:"variables"`
	Version    int       `json:"version"`
}

// TemplateUpdate is new content for ApplyUpdate.
type TemplateUpdate struct {
	Subject   string
	Body      string
	Variables []string
}

// SendStatus is the lifecycle state of a SendRecord.
type SendStatus string

const (
	StatusPending SendStatus = "pending"
	StatusSent    SendStatus = "sent"
	StatusFailed  SendStatus = "failed"
)

// SendRecord is the audit and idempotency entity of one logical send.
type SendRecord struct {
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	ID                string     `json:"id"`
	OwnerID           string     `json:"owner_id"`
	NoteID            string     `json:"note_id,omitempty"`
	TemplateID        string     `json:"template_id"`
	IdempotencyKey    string     `json:"idempotency_key"`
	Subject           string     `json:"subject"`
	HTML              string     `json:"html"`
	Text              string     `json:"text"`
	Status            SendStatus `json:"status"`
	Provider          string     `json:"provider,omitempty"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	Error             string     `json:"error,omitempty"`
	Recipients        []string   `json:"recipients"`
	TemplateVersion   int        `json:"template_version"`
}

// Transition moves a record from one status to another. Fields other
// than To are written as given, so a transition back to pending clears
// the previous error.
type Transition struct {
	SentAt            *time.Time
	To                SendStatus
	Provider          string
	ProviderMessageID string
	Error             string
}

// Credential is an owner's grant for one provider.
type Credential struct {
	UpdatedAt  time.Time `json:"updated_at"`
	OwnerID    string    `json:"owner_id"`
	Provider   string    `json:"provider"`
	Token      string    `json:"-"`
	Authorized bool      `json:"authorized"`
}
