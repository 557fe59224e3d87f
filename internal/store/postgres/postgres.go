// Package postgres implements store.Store on PostgreSQL via pgx.
//
// Idempotency is enforced by the send_records_idempotency_key_key unique
// constraint; a losing concurrent insert surfaces as store.ErrDuplicateKey.
// Template updates lock the live row with SELECT ... FOR UPDATE so the
// snapshot and the version bump happen atomically.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/notemail/internal/store"
	"github.com/dmitrymomot/notemail/pkg/db"
)

const idempotencyConstraint = "send_records_idempotency_key_key"

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements store.Store.
type Store struct {
	db DB
}

// New creates a Store on top of a pool.
func New(pool DB) *Store {
	return &Store{db: pool}
}

var _ store.Store = (*Store)(nil)

func notFound(err error) error {
	if db.IsNotFound(err) {
		return store.ErrNotFound
	}
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Notes

// GetNote implements store.NoteStore.
func (s *Store) GetNote(ctx context.Context, ownerID, id string) (*store.Note, error) {
	var n store.Note
	err := s.db.QueryRow(ctx, `
		SELECT id, owner_id, title, content, created_at, updated_at
		FROM notes WHERE id = $1 AND owner_id = $2`, id, ownerID,
	).Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

// SaveNote upserts n by id. A note owned by someone else returns store.ErrNotFound.
func (s *Store) SaveNote(ctx context.Context, n *store.Note) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO notes (id, owner_id, title, content)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
			SET title = EXCLUDED.title, content = EXCLUDED.content, updated_at = now()
			WHERE notes.owner_id = EXCLUDED.owner_id
		RETURNING created_at, updated_at`,
		n.ID, n.OwnerID, n.Title, n.Content,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	return notFound(err)
}

// Templates

const templateColumns = `id, owner_id, name, subject, body, variables, version, active, created_at, updated_at`

func scanTemplate(row pgx.Row) (*store.Template, error) {
	var t store.Template
	err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Subject, &t.Body, &t.Variables,
		&t.Version, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// CreateTemplate implements store.TemplateStore.
func (s *Store) CreateTemplate(ctx context.Context, t *store.Template) error {
	created, err := scanTemplate(s.db.QueryRow(ctx, `
		INSERT INTO email_templates (id, owner_id, name, subject, body, variables)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+templateColumns,
		t.ID, t.OwnerID, t.Name, t.Subject, t.Body, nonNil(t.Variables),
	))
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	*t = *created
	return nil
}

// GetActiveTemplate implements store.TemplateStore.
func (s *Store) GetActiveTemplate(ctx context.Context, ownerID, id string) (*store.Template, error) {
	return scanTemplate(s.db.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM email_templates WHERE id = $1 AND owner_id = $2 AND active`, id, ownerID))
}

// ApplyUpdate implements store.TemplateStore inside a single transaction.
func (s *Store) ApplyUpdate(ctx context.Context, ownerID, id string, u store.TemplateUpdate) (int, error) {
	return db.WithTxResult(ctx, s.db, func(tx pgx.Tx) (int, error) {
		cur, err := scanTemplate(tx.QueryRow(ctx, `
			SELECT `+templateColumns+`
			FROM email_templates WHERE id = $1 AND owner_id = $2 AND active
			FOR UPDATE`, id, ownerID))
		if err != nil {
			return 0, err
		}
		if cur.Subject == u.Subject && cur.Body == u.Body {
			return cur.Version, nil
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO email_template_versions (template_id, version, subject, body, variables)
			VALUES ($1, $2, $3, $4, $5)`,
			cur.ID, cur.Version, cur.Subject, cur.Body, nonNil(cur.Variables),
		); err != nil {
			return 0, fmt.Errorf("snapshot template: %w", err)
		}

		var version int
		if err := tx.QueryRow(ctx, `
			UPDATE email_templates
			SET version = version + 1, subject = $2, body = $3, variables = $4, updated_at = now()
			WHERE id = $1
			RETURNING version`,
			id, u.Subject, u.Body, nonNil(u.Variables),
		).Scan(&version); err != nil {
			return 0, fmt.Errorf("bump template version: %w", err)
		}
		return version, nil
	})
}

// ListVersions implements store.TemplateStore.
func (s *Store) ListVersions(ctx context.Context, ownerID, id string) ([]store.TemplateVersion, error) {
	if err := s.ownsTemplate(ctx, ownerID, id); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT template_id, version, subject, body, variables, created_at
		FROM email_template_versions WHERE template_id = $1
		ORDER BY version DESC`, id)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.TemplateVersion, error) {
		var v store.TemplateVersion
		err := row.Scan(&v.TemplateID, &v.Version, &v.Subject, &v.Body, &v.Variables, &v.CreatedAt)
		return v, err
	})
}

// GetVersion implements store.TemplateStore.
func (s *Store) GetVersion(ctx context.Context, ownerID, id string, version int) (*store.TemplateVersion, error) {
	var v store.TemplateVersion
	err := s.db.QueryRow(ctx, `
		SELECT t.id, t.version, t.subject, t.body, t.variables, t.updated_at
		FROM email_templates t WHERE t.id = $1 AND t.owner_id = $2 AND t.version = $3
		UNION ALL
		SELECT v.template_id, v.version, v.subject, v.body, v.variables, v.created_at
		FROM email_template_versions v
		JOIN email_templates t ON t.id = v.template_id
		WHERE v.template_id = $1 AND t.owner_id = $2 AND v.version = $3
		LIMIT 1`, id, ownerID, version,
	).Scan(&v.TemplateID, &v.Version, &v.Subject, &v.Body, &v.Variables, &v.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// DeactivateTemplate implements store.TemplateStore.
func (s *Store) DeactivateTemplate(ctx context.Context, ownerID, id string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE email_templates SET active = FALSE, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND active`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ownsTemplate(ctx context.Context, ownerID, id string) error {
	var one int
	err := s.db.QueryRow(ctx, `SELECT 1 FROM email_templates WHERE id = $1 AND owner_id = $2`, id, ownerID).Scan(&one)
	return notFound(err)
}

// Sends

const sendColumns = `id, owner_id, COALESCE(note_id, ''), template_id, template_version, idempotency_key,
	recipients, subject, html, text, status, provider, provider_message_id, error, sent_at, created_at, updated_at`

func scanSend(row pgx.Row) (*store.SendRecord, error) {
	var r store.SendRecord
	err := row.Scan(&r.ID, &r.OwnerID, &r.NoteID, &r.TemplateID, &r.TemplateVersion, &r.IdempotencyKey,
		&r.Recipients, &r.Subject, &r.HTML, &r.Text, &r.Status, &r.Provider, &r.ProviderMessageID, &r.Error,
		&r.SentAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func collectSends(rows pgx.Rows) ([]store.SendRecord, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.SendRecord, error) {
		r, err := scanSend(row)
		if err != nil {
			return store.SendRecord{}, err
		}
		return *r, nil
	})
}

// CreateSend implements store.SendStore.
func (s *Store) CreateSend(ctx context.Context, r *store.SendRecord) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO send_records (id, owner_id, note_id, template_id, template_version, idempotency_key,
			recipients, subject, html, text, status)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		r.ID, r.OwnerID, r.NoteID, r.TemplateID, r.TemplateVersion, r.IdempotencyKey,
		nonNil(r.Recipients), r.Subject, r.HTML, r.Text, r.Status,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if db.IsUniqueViolation(err, idempotencyConstraint) {
		return store.ErrDuplicateKey
	}
	return err
}

// GetSend implements store.SendStore.
func (s *Store) GetSend(ctx context.Context, ownerID, id string) (*store.SendRecord, error) {
	return scanSend(s.db.QueryRow(ctx, `
		SELECT `+sendColumns+` FROM send_records WHERE id = $1 AND owner_id = $2`, id, ownerID))
}

// GetSendByKey implements store.SendStore.
func (s *Store) GetSendByKey(ctx context.Context, key string) (*store.SendRecord, error) {
	return scanSend(s.db.QueryRow(ctx, `
		SELECT `+sendColumns+` FROM send_records WHERE idempotency_key = $1`, key))
}

// Transition implements store.SendStore with a conditional UPDATE on status.
func (s *Store) Transition(ctx context.Context, id string, from store.SendStatus, t store.Transition) (*store.SendRecord, error) {
	rec, err := scanSend(s.db.QueryRow(ctx, `
		UPDATE send_records
		SET status = $3, provider = $4, provider_message_id = $5, error = $6, sent_at = $7, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+sendColumns,
		id, from, t.To, t.Provider, t.ProviderMessageID, t.Error, t.SentAt,
	))
	if !errors.Is(err, store.ErrNotFound) {
		return rec, err
	}

	var current store.SendStatus
	if err := s.db.QueryRow(ctx, `SELECT status FROM send_records WHERE id = $1`, id).Scan(&current); err != nil {
		return nil, notFound(err)
	}
	return nil, fmt.Errorf("%w: %s is %s, expected %s", store.ErrStatusConflict, id, current, from)
}

// ListSends implements store.SendStore. A non-positive limit means no limit.
func (s *Store) ListSends(ctx context.Context, ownerID string, limit int) ([]store.SendRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+sendColumns+` FROM send_records
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF(GREATEST($2::int, 0), 0)`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	return collectSends(rows)
}

// ListStalePending implements store.SendStore.
func (s *Store) ListStalePending(ctx context.Context, before time.Time, limit int) ([]store.SendRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+sendColumns+` FROM send_records
		WHERE status = 'pending' AND updated_at < $1
		ORDER BY updated_at
		LIMIT NULLIF(GREATEST($2::int, 0), 0)`, before, limit)
	if err != nil {
		return nil, err
	}
	return collectSends(rows)
}

// Credentials

// GetCredential implements store.CredentialStore.
func (s *Store) GetCredential(ctx context.Context, ownerID, provider string) (*store.Credential, error) {
	c := store.Credential{OwnerID: ownerID, Provider: provider}
	err := s.db.QueryRow(ctx, `
		SELECT token, authorized, updated_at FROM provider_credentials
		WHERE owner_id = $1 AND provider = $2`, ownerID, provider,
	).Scan(&c.Token, &c.Authorized, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// SaveCredential upserts on (owner_id, provider).
func (s *Store) SaveCredential(ctx context.Context, c *store.Credential) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO provider_credentials (owner_id, provider, token, authorized)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, provider) DO UPDATE
			SET token = EXCLUDED.token, authorized = EXCLUDED.authorized, updated_at = now()
		RETURNING updated_at`,
		c.OwnerID, c.Provider, c.Token, c.Authorized,
	).Scan(&c.UpdatedAt)
}
