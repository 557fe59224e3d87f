package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/notemail/internal/store"
	"github.com/dmitrymomot/notemail/pkg/id"
	"github.com/dmitrymomot/notemail/pkg/logger"
	"github.com/dmitrymomot/notemail/pkg/templating"
)

// Templates manages owner templates. Content is compiled before every
// write so stored templates always parse.
type Templates struct {
	store store.TemplateStore
	log   *slog.Logger
}

// NewTemplates creates the template service. A nil logger discards output.
func NewTemplates(st store.TemplateStore, log *slog.Logger) *Templates {
	if log == nil {
		log = logger.NewNope()
	}
	return &Templates{store: st, log: log}
}

// Create stores a new template at version 1.
func (s *Templates) Create(ctx context.Context, ownerID, name, subject, body string) (*store.Template, error) {
	name = strings.TrimSpace(name)
	if ownerID == "" || name == "" {
		return nil, fmt.Errorf("%w: owner id and name are required", ErrInvalidRequest)
	}
	if err := templating.Validate(subject, body).Err(); err != nil {
		return nil, err
	}

	t := &store.Template{
		ID:        id.NewULID(),
		OwnerID:   ownerID,
		Name:      name,
		Subject:   subject,
		Body:      body,
		Variables: templating.ExtractVariables(subject, body),
		Version:   1,
		Active:    true,
	}
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("dispatch: create template: %w", err)
	}
	s.log.InfoContext(WithOwnerID(ctx, ownerID), "template created", slog.String("template_id", t.ID))
	return t, nil
}

// Update replaces the template content. Changed content bumps the version
// and keeps the previous content as a snapshot.
func (s *Templates) Update(ctx context.Context, ownerID, templateID, subject, body string) (*store.Template, error) {
	if err := templating.Validate(subject, body).Err(); err != nil {
		return nil, err
	}

	version, err := s.store.ApplyUpdate(ctx, ownerID, templateID, store.TemplateUpdate{
		Subject:   subject,
		Body:      body,
		Variables: templating.ExtractVariables(subject, body),
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: update template %s: %w", templateID, err)
	}
	s.log.InfoContext(WithOwnerID(ctx, ownerID), "template saved",
		slog.String("template_id", templateID),
		slog.Int("version", version),
	)
	return s.store.GetActiveTemplate(ctx, ownerID, templateID)
}

// Get returns the active template.
func (s *Templates) Get(ctx context.Context, ownerID, templateID string) (*store.Template, error) {
	return s.store.GetActiveTemplate(ctx, ownerID, templateID)
}

// Versions lists superseded versions, newest first.
func (s *Templates) Versions(ctx context.Context, ownerID, templateID string) ([]store.TemplateVersion, error) {
	return s.store.ListVersions(ctx, ownerID, templateID)
}

// Version returns the content of one version.
func (s *Templates) Version(ctx context.Context, ownerID, templateID string, version int) (*store.TemplateVersion, error) {
	return s.store.GetVersion(ctx, ownerID, templateID, version)
}

// Deactivate soft-deletes the template. Existing send records keep their
// rendered content.
func (s *Templates) Deactivate(ctx context.Context, ownerID, templateID string) error {
	return s.store.DeactivateTemplate(ctx, ownerID, templateID)
}
