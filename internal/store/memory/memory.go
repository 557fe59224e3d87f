// Package memory is an in-process implementation of store.Store.
//
// It is safe for concurrent use and mirrors the constraints of the
// postgres implementation, including idempotency key uniqueness.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/notemail/internal/store"
)

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	now         func() time.Time
	notes       map[string]store.Note
	templates   map[string]store.Template
	versions    map[string][]store.TemplateVersion
	sends       map[string]store.SendRecord
	sendsByKey  map[string]string
	credentials map[string]store.Credential
	mu          sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:         time.Now,
		notes:       make(map[string]store.Note),
		templates:   make(map[string]store.Template),
		versions:    make(map[string][]store.TemplateVersion),
		sends:       make(map[string]store.SendRecord),
		sendsByKey:  make(map[string]string),
		credentials: make(map[string]store.Credential),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

// Notes

// GetNote implements store.NoteStore.
func (s *Store) GetNote(_ context.Context, ownerID, id string) (*store.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notes[id]
	if !ok || n.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &n, nil
}

// SaveNote upserts a copy of n.
func (s *Store) SaveNote(_ context.Context, n *store.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.notes[n.ID]; ok {
		if existing.OwnerID != n.OwnerID {
			return store.ErrNotFound
		}
		n.CreatedAt = existing.CreatedAt
	} else if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	s.notes[n.ID] = *n
	return nil
}

// Templates

// CreateTemplate implements store.TemplateStore.
func (s *Store) CreateTemplate(_ context.Context, t *store.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[t.ID]; ok {
		return fmt.Errorf("memory: template %s already exists", t.ID)
	}

	now := s.now()
	t.Version = 1
	t.Active = true
	t.CreatedAt = now
	t.UpdatedAt = now

	cp := *t
	cp.Variables = slices.Clone(t.Variables)
	s.templates[t.ID] = cp
	return nil
}

// GetActiveTemplate implements store.TemplateStore.
func (s *Store) GetActiveTemplate(_ context.Context, ownerID, id string) (*store.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok || t.OwnerID != ownerID || !t.Active {
		return nil, store.ErrNotFound
	}
	t.Variables = slices.Clone(t.Variables)
	return &t, nil
}

// ApplyUpdate implements store.TemplateStore. The snapshot and bump happen under one lock.
func (s *Store) ApplyUpdate(_ context.Context, ownerID, id string, u store.TemplateUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[id]
	if !ok || t.OwnerID != ownerID || !t.Active {
		return 0, store.ErrNotFound
	}
	if t.Subject == u.Subject && t.Body == u.Body {
		return t.Version, nil
	}

	now := s.now()
	s.versions[id] = append(s.versions[id], t.Snapshot(now))

	t.Version++
	t.Subject = u.Subject
	t.Body = u.Body
	t.Variables = slices.Clone(u.Variables)
	t.UpdatedAt = now
	s.templates[id] = t

	return t.Version, nil
}

// ListVersions implements store.TemplateStore.
func (s *Store) ListVersions(_ context.Context, ownerID, id string) ([]store.TemplateVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok || t.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}

	src := s.versions[id]
	out := make([]store.TemplateVersion, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		v := src[i]
		v.Variables = slices.Clone(v.Variables)
		out = append(out, v)
	}
	return out, nil
}

// GetVersion implements store.TemplateStore.
func (s *Store) GetVersion(_ context.Context, ownerID, id string, version int) (*store.TemplateVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok || t.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	if version == t.Version {
		v := t.Snapshot(t.UpdatedAt)
		return &v, nil
	}
	for _, v := range s.versions[id] {
		if v.Version == version {
			v.Variables = slices.Clone(v.Variables)
			return &v, nil
		}
	}
	return nil, store.ErrNotFound
}

// DeactivateTemplate implements store.TemplateStore.
func (s *Store) DeactivateTemplate(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[id]
	if !ok || t.OwnerID != ownerID || !t.Active {
		return store.ErrNotFound
	}
	t.Active = false
	t.UpdatedAt = s.now()
	s.templates[id] = t
	return nil
}

// Sends

// CreateSend implements store.SendStore.
func (s *Store) CreateSend(_ context.Context, r *store.SendRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sendsByKey[r.IdempotencyKey]; ok {
		return store.ErrDuplicateKey
	}

	now := s.now()
	r.CreatedAt = now
	r.UpdatedAt = now

	s.sends[r.ID] = cloneSend(*r)
	s.sendsByKey[r.IdempotencyKey] = r.ID
	return nil
}

// GetSend implements store.SendStore.
func (s *Store) GetSend(_ context.Context, ownerID, id string) (*store.SendRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.sends[id]
	if !ok || r.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	r = cloneSend(r)
	return &r, nil
}

// GetSendByKey implements store.SendStore.
func (s *Store) GetSendByKey(_ context.Context, key string) (*store.SendRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.sendsByKey[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	r := cloneSend(s.sends[id])
	return &r, nil
}

// Transition implements store.SendStore as a compare-and-set on status.
func (s *Store) Transition(_ context.Context, id string, from store.SendStatus, t store.Transition) (*store.SendRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.sends[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if r.Status != from {
		return nil, fmt.Errorf("%w: %s is %s, expected %s", store.ErrStatusConflict, id, r.Status, from)
	}

	r.Status = t.To
	r.Provider = t.Provider
	r.ProviderMessageID = t.ProviderMessageID
	r.Error = t.Error
	r.SentAt = t.SentAt
	r.UpdatedAt = s.now()
	s.sends[id] = r

	out := cloneSend(r)
	return &out, nil
}

// ListSends implements store.SendStore. A non-positive limit returns every record.
func (s *Store) ListSends(_ context.Context, ownerID string, limit int) ([]store.SendRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.SendRecord, 0)
	for _, r := range s.sends {
		if r.OwnerID == ownerID {
			out = append(out, cloneSend(r))
		}
	}
	slices.SortFunc(out, func(a, b store.SendRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListStalePending implements store.SendStore.
func (s *Store) ListStalePending(_ context.Context, before time.Time, limit int) ([]store.SendRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.SendRecord, 0)
	for _, r := range s.sends {
		if r.Status == store.StatusPending && r.UpdatedAt.Before(before) {
			out = append(out, cloneSend(r))
		}
	}
	slices.SortFunc(out, func(a, b store.SendRecord) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Credentials

func credentialKey(ownerID, provider string) string {
	return ownerID + "\x00" + provider
}

// GetCredential implements store.CredentialStore.
func (s *Store) GetCredential(_ context.Context, ownerID, provider string) (*store.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[credentialKey(ownerID, provider)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

// SaveCredential upserts by owner and provider.
func (s *Store) SaveCredential(_ context.Context, c *store.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.UpdatedAt = s.now()
	s.credentials[credentialKey(c.OwnerID, c.Provider)] = *c
	return nil
}

func cloneSend(r store.SendRecord) store.SendRecord {
	r.Recipients = slices.Clone(r.Recipients)
	if r.SentAt != nil {
		t := *r.SentAt
		r.SentAt = &t
	}
	return r
}
