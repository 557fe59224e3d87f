package store

import (
	"context"
	"time"
)

// NoteStore reads notes.
type NoteStore interface {
	// GetNote returns ErrNotFound when the note is missing or owned by someone else.
	GetNote(ctx context.Context, ownerID, id string) (*Note, error)
	SaveNote(ctx context.Context, n *Note) error
}

// TemplateStore keeps the live template rows and their version history.
type TemplateStore interface {
	// CreateTemplate inserts t at version 1.
	CreateTemplate(ctx context.Context, t *Template) error

	// GetActiveTemplate returns ErrNotFound for missing, inactive or foreign templates.
	GetActiveTemplate(ctx context.Context, ownerID, id string) (*Template, error)

	// ApplyUpdate replaces subject, body and variables. When content differs
	// it first snapshots the current row, then bumps the version. Identical
	// content is a no-op. Returns the resulting version.
	ApplyUpdate(ctx context.Context, ownerID, id string, u TemplateUpdate) (int, error)

	// ListVersions returns snapshots, newest first.
	ListVersions(ctx context.Context, ownerID, id string) ([]TemplateVersion, error)

	// GetVersion returns one snapshot, or the live row when version is current.
	GetVersion(ctx context.Context, ownerID, id string, version int) (*TemplateVersion, error)

	// DeactivateTemplate soft-deletes the template.
	DeactivateTemplate(ctx context.Context, ownerID, id string) error
}

// SendStore persists send records.
type SendStore interface {
	// CreateSend inserts a record. A key collision returns ErrDuplicateKey.
	CreateSend(ctx context.Context, r *SendRecord) error

	GetSend(ctx context.Context, ownerID, id string) (*SendRecord, error)
	GetSendByKey(ctx context.Context, key string) (*SendRecord, error)

	// Transition applies t only when the record is currently in status from.
	// Returns ErrStatusConflict when it is not.
	Transition(ctx context.Context, id string, from SendStatus, t Transition) (*SendRecord, error)

	// ListSends returns an owner's records, newest first.
	ListSends(ctx context.Context, ownerID string, limit int) ([]SendRecord, error)

	// ListStalePending returns pending records not updated since before.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]SendRecord, error)
}

// CredentialStore reads provider credentials. Their lifecycle is owned elsewhere.
type CredentialStore interface {
	GetCredential(ctx context.Context, ownerID, provider string) (*Credential, error)
	SaveCredential(ctx context.Context, c *Credential) error
}

// Store is the full persistence surface.
type Store interface {
	NoteStore
	TemplateStore
	SendStore
	CredentialStore
}
