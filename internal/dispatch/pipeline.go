package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrymomot/notemail/internal/store"
	"github.com/dmitrymomot/notemail/pkg/cache"
	"github.com/dmitrymomot/notemail/pkg/id"
	"github.com/dmitrymomot/notemail/pkg/locale"
	"github.com/dmitrymomot/notemail/pkg/logger"
	"github.com/dmitrymomot/notemail/pkg/mailer"
	"github.com/dmitrymomot/notemail/pkg/storage"
	"github.com/dmitrymomot/notemail/pkg/templating"
)

// HeaderSendID carries the send record id on outgoing messages.
const HeaderSendID = "X-Notemail-Send-ID"

// finalizeTimeout bounds recording a provider answer.
const finalizeTimeout = 10 * time.Second

// Request asks for one logical send.
type Request struct {
	OwnerID    string   `json:"owner_id"`
	NoteID     string   `json:"note_id"`
	TemplateID string   `json:"template_id"`
	Recipients []string `json:"recipients"`
	// IdempotencyKey deduplicates requests. Empty generates one.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	// Provider overrides the configured primary provider.
	Provider string `json:"provider,omitempty"`
}

// Outcome is the state of a send record after Dispatch or Retry.
type Outcome struct {
	Record *store.SendRecord `json:"record"`
	// Replayed is true when the key already had a record.
	Replayed bool `json:"replayed"`
}

// Pipeline renders, records and delivers sends.
type Pipeline struct {
	store      store.Store
	renderer   *templating.Renderer
	markdown   *templating.Markdown
	providers  map[mailer.Kind]mailer.Provider
	previews   cache.Cache[templating.Result]
	archive    storage.Archive
	log        *slog.Logger
	now        func() time.Time
	locale     locale.Locale
	primary    mailer.Kind
	priority   []mailer.Kind
	timeout    time.Duration
	sendLimit  time.Duration
	pendingTTL time.Duration
	previewTTL time.Duration
	inflight   sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithConfig applies provider order, timeouts and locale from cfg.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) {
		if cfg.Primary != "" {
			p.primary = mailer.Kind(cfg.Primary)
		}
		if len(cfg.Priority) > 0 {
			p.priority = make([]mailer.Kind, 0, len(cfg.Priority))
			for _, k := range cfg.Priority {
				p.priority = append(p.priority, mailer.Kind(k))
			}
		}
		if cfg.Timeout > 0 {
			p.timeout = cfg.Timeout
		}
		if cfg.SendLimit > 0 {
			p.sendLimit = cfg.SendLimit
		}
		if cfg.PendingTTL > 0 {
			p.pendingTTL = cfg.PendingTTL
		}
		if cfg.PreviewTTL > 0 {
			p.previewTTL = cfg.PreviewTTL
		}
		if cfg.Locale != "" {
			p.locale = locale.Match(cfg.Locale)
		}
	}
}

// WithPreviewCache caches RenderPreview results.
func WithPreviewCache(c cache.Cache[templating.Result]) Option {
	return func(p *Pipeline) { p.previews = c }
}

// WithArchive stores the HTML of every sent record.
func WithArchive(a storage.Archive) Option {
	return func(p *Pipeline) { p.archive = a }
}

// New creates a pipeline over st delivering through providers.
func New(st store.Store, renderer *templating.Renderer, providers []mailer.Provider, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      st,
		renderer:   renderer,
		markdown:   templating.NewMarkdown(),
		providers:  make(map[mailer.Kind]mailer.Provider, len(providers)),
		log:        logger.NewNope(),
		now:        time.Now,
		locale:     locale.Default(),
		primary:    mailer.KindGmail,
		priority:   []mailer.Kind{mailer.KindGmail, mailer.KindResend},
		timeout:    30 * time.Second,
		sendLimit:  2 * time.Minute,
		pendingTTL: 15 * time.Minute,
		previewTTL: 10 * time.Minute,
	}
	for _, pr := range providers {
		p.providers[pr.Kind()] = pr
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait blocks until sends that outlived their dispatch deadline finish.
func (p *Pipeline) Wait() {
	p.inflight.Wait()
}

// Dispatch performs one logical send. Replays return the stored record
// with a nil error. When a record exists but delivery failed, the Outcome
// is returned together with the error.
func (p *Pipeline) Dispatch(ctx context.Context, req Request) (*Outcome, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = id.NewIdempotencyKey()
	}
	ctx = WithOwnerID(ctx, req.OwnerID)

	if out, err := p.replay(ctx, req); out != nil || err != nil {
		return out, err
	}

	tpl, err := p.store.GetActiveTemplate(ctx, req.OwnerID, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load template %s: %w", req.TemplateID, err)
	}
	note, err := p.store.GetNote(ctx, req.OwnerID, req.NoteID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load note %s: %w", req.NoteID, err)
	}

	rendered, err := p.render(ctx, tpl, note, p.locale)
	if err != nil {
		return nil, err
	}

	rec := &store.SendRecord{
		ID:              id.NewULID(),
		OwnerID:         req.OwnerID,
		NoteID:          note.ID,
		TemplateID:      tpl.ID,
		TemplateVersion: tpl.Version,
		IdempotencyKey:  req.IdempotencyKey,
		Recipients:      slices.Clone(req.Recipients),
		Subject:         rendered.Subject,
		HTML:            rendered.HTML,
		Text:            rendered.Text,
		Status:          store.StatusPending,
	}
	if err := p.store.CreateSend(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// Lost the race to a concurrent dispatch with the same key.
			if out, err := p.replay(ctx, req); out != nil || err != nil {
				return out, err
			}
		}
		return nil, fmt.Errorf("dispatch: create send: %w", err)
	}

	ctx = withSendID(ctx, rec.ID)
	p.log.InfoContext(ctx, "send created",
		slog.String("template_id", tpl.ID),
		slog.Int("template_version", tpl.Version),
		slog.Int("recipients", len(rec.Recipients)),
	)

	final, err := p.deliver(ctx, rec, mailer.Kind(req.Provider))
	return &Outcome{Record: final}, err
}

// Retry resends a failed record with its stored content.
func (p *Pipeline) Retry(ctx context.Context, ownerID, sendID string) (*Outcome, error) {
	ctx = withSendID(WithOwnerID(ctx, ownerID), sendID)

	rec, err := p.store.GetSend(ctx, ownerID, sendID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load send %s: %w", sendID, err)
	}
	if rec.Status != store.StatusFailed {
		return &Outcome{Record: rec}, fmt.Errorf("%w: status is %s", ErrNotRetryable, rec.Status)
	}

	rec, err = p.store.Transition(ctx, sendID, store.StatusFailed, store.Transition{To: store.StatusPending})
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: %w", ErrNotRetryable, err)
		}
		return nil, fmt.Errorf("dispatch: reopen send %s: %w", sendID, err)
	}
	p.log.InfoContext(ctx, "send retried")

	final, err := p.deliver(ctx, rec, "")
	return &Outcome{Record: final}, err
}

// Send returns one of the owner's send records.
func (p *Pipeline) Send(ctx context.Context, ownerID, sendID string) (*store.SendRecord, error) {
	return p.store.GetSend(ctx, ownerID, sendID)
}

// Sends lists the owner's send records, newest first. A limit of zero
// returns all of them.
func (p *Pipeline) Sends(ctx context.Context, ownerID string, limit int) ([]store.SendRecord, error) {
	return p.store.ListSends(ctx, ownerID, limit)
}

// ArchivedHTML reads the archived body of a sent record.
func (p *Pipeline) ArchivedHTML(ctx context.Context, ownerID, sendID string) ([]byte, error) {
	key, err := p.archiveKey(ctx, ownerID, sendID)
	if err != nil {
		return nil, err
	}
	return p.archive.Get(ctx, key)
}

// ArchiveURL returns a presigned link to the archived body of a sent record.
func (p *Pipeline) ArchiveURL(ctx context.Context, ownerID, sendID string, expiry time.Duration) (string, error) {
	key, err := p.archiveKey(ctx, ownerID, sendID)
	if err != nil {
		return "", err
	}
	return p.archive.URL(ctx, key, expiry)
}

// archiveKey resolves the archive key of a sent record owned by ownerID.
// Only sent records are archived.
func (p *Pipeline) archiveKey(ctx context.Context, ownerID, sendID string) (string, error) {
	if p.archive == nil {
		return "", ErrArchiveDisabled
	}
	rec, err := p.store.GetSend(ctx, ownerID, sendID)
	if err != nil {
		return "", err
	}
	if rec.Status != store.StatusSent {
		return "", fmt.Errorf("%w: send %s is %s", store.ErrNotFound, sendID, rec.Status)
	}
	return storage.SendKey(rec.OwnerID, rec.ID), nil
}

// PreviewRequest selects what RenderPreview renders.
type PreviewRequest struct {
	OwnerID    string
	TemplateID string
	NoteID     string
	// Locale is a BCP 47 tag; empty uses the configured locale.
	Locale string
}

// RenderPreview renders a template against a note without persisting or
// sending anything.
func (p *Pipeline) RenderPreview(ctx context.Context, req PreviewRequest) (*templating.Result, error) {
	tpl, err := p.store.GetActiveTemplate(ctx, req.OwnerID, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load template %s: %w", req.TemplateID, err)
	}
	note, err := p.store.GetNote(ctx, req.OwnerID, req.NoteID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load note %s: %w", req.NoteID, err)
	}

	loc := p.locale
	if req.Locale != "" {
		loc = locale.Match(req.Locale)
	}

	if p.previews == nil {
		return p.render(ctx, tpl, note, loc)
	}

	// Date bindings change daily, so the day is part of the key.
	key := cache.Key("preview", tpl.ID, "v"+strconv.Itoa(tpl.Version), note.ID,
		strconv.FormatInt(note.UpdatedAt.UnixNano(), 10), loc.Tag().String(), p.now().UTC().Format(time.DateOnly))
	res, err := cache.GetOrSet(ctx, p.previews, key, func(ctx context.Context) (templating.Result, time.Duration, error) {
		r, err := p.render(ctx, tpl, note, loc)
		if err != nil {
			return templating.Result{}, 0, err
		}
		return *r, p.previewTTL, nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ValidateTemplate compiles subject and body and reports per-field errors.
func (p *Pipeline) ValidateTemplate(subject, body string) templating.Validation {
	return templating.Validate(subject, body)
}

// SweepStale fails pending records untouched for longer than the pending
// TTL. It returns how many records it failed.
func (p *Pipeline) SweepStale(ctx context.Context) (int, error) {
	before := p.now().Add(-p.pendingTTL)
	swept := 0
	for {
		stale, err := p.store.ListStalePending(ctx, before, 100)
		if err != nil {
			return swept, fmt.Errorf("dispatch: list stale sends: %w", err)
		}
		if len(stale) == 0 {
			break
		}

		progressed := false
		for _, rec := range stale {
			_, err := p.store.Transition(ctx, rec.ID, store.StatusPending, store.Transition{
				To:    store.StatusFailed,
				Error: StaleMessage,
			})
			switch {
			case err == nil:
				swept++
				progressed = true
				p.log.WarnContext(withSendID(ctx, rec.ID), "stale send failed", slog.Time("updated_at", rec.UpdatedAt))
			case errors.Is(err, store.ErrStatusConflict):
				// Finalized between list and transition.
				progressed = true
			default:
				return swept, fmt.Errorf("dispatch: sweep send %s: %w", rec.ID, err)
			}
		}
		if !progressed || len(stale) < 100 {
			break
		}
	}
	return swept, nil
}

func (p *Pipeline) validate(req Request) error {
	switch {
	case req.OwnerID == "":
		return fmt.Errorf("%w: owner id is required", ErrInvalidRequest)
	case req.NoteID == "":
		return fmt.Errorf("%w: note id is required", ErrInvalidRequest)
	case req.TemplateID == "":
		return fmt.Errorf("%w: template id is required", ErrInvalidRequest)
	case len(req.Recipients) == 0:
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidRequest)
	}
	for _, to := range req.Recipients {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("%w: recipient %q: %w", ErrInvalidRequest, to, err)
		}
	}
	if req.Provider != "" {
		if _, ok := p.providers[mailer.Kind(req.Provider)]; !ok {
			return fmt.Errorf("%w: unknown provider %q", ErrInvalidRequest, req.Provider)
		}
	}
	return nil
}

// replay returns the existing record for the request's key, or nil when
// there is none.
func (p *Pipeline) replay(ctx context.Context, req Request) (*Outcome, error) {
	rec, err := p.store.GetSendByKey(ctx, req.IdempotencyKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dispatch: lookup key: %w", err)
	}
	if rec.OwnerID != req.OwnerID {
		return nil, ErrKeyInUse
	}
	p.log.InfoContext(withSendID(ctx, rec.ID), "send replayed", slog.String("status", string(rec.Status)))
	return &Outcome{Record: rec, Replayed: true}, nil
}

func (p *Pipeline) render(ctx context.Context, tpl *store.Template, note *store.Note, loc locale.Locale) (*templating.Result, error) {
	bindings, err := NoteBindings(note, p.markdown, p.now(), loc)
	if err != nil {
		return nil, err
	}
	res, err := p.renderer.Render(ctx, tpl.Body, tpl.Subject, bindings)
	if err != nil {
		return nil, fmt.Errorf("dispatch: render template %s v%d: %w", tpl.ID, tpl.Version, err)
	}
	return res, nil
}

type delivery struct {
	rec *store.SendRecord
	err error
}

// deliver sends a pending record and finalizes it. The provider call runs
// on its own goroutine, detached from ctx cancellation, so a finished send
// is always recorded even after the caller stopped waiting.
func (p *Pipeline) deliver(ctx context.Context, rec *store.SendRecord, preferred mailer.Kind) (*store.SendRecord, error) {
	provider, cred, err := p.selectProvider(ctx, rec.OwnerID, preferred)
	if err != nil {
		if !errors.Is(err, ErrNoAuthorizedProvider) {
			return rec, err
		}
		failed, terr := p.store.Transition(ctx, rec.ID, store.StatusPending, store.Transition{
			To:    store.StatusFailed,
			Error: err.Error(),
		})
		if terr != nil {
			return rec, errors.Join(err, terr)
		}
		p.log.WarnContext(ctx, "no authorized provider")
		return failed, err
	}

	done := make(chan delivery, 1)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.sendLimit)
		defer cancel()

		res := mailer.SafeSend(sendCtx, provider, cred, p.message(rec))

		// The provider may answer right at the send limit; recording the
		// outcome gets its own deadline.
		finCtx, finCancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		defer finCancel()

		out, err := p.finalize(finCtx, rec, provider.Kind(), res)
		done <- delivery{rec: out, err: err}
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case d := <-done:
		return d.rec, d.err
	case <-timer.C:
		p.log.WarnContext(ctx, "provider did not answer before deadline",
			slog.String("provider", string(provider.Kind())),
			slog.Duration("timeout", p.timeout),
		)
		return rec, ErrDispatchTimeout
	case <-ctx.Done():
		return rec, errors.Join(ErrDispatchTimeout, ctx.Err())
	}
}

// selectProvider tries the preferred provider, then the configured
// primary, then the priority list.
func (p *Pipeline) selectProvider(ctx context.Context, ownerID string, preferred mailer.Kind) (mailer.Provider, mailer.Credential, error) {
	order := make([]mailer.Kind, 0, len(p.priority)+2)
	for _, k := range append([]mailer.Kind{preferred, p.primary}, p.priority...) {
		if k != "" && !slices.Contains(order, k) {
			order = append(order, k)
		}
	}

	for _, kind := range order {
		provider, ok := p.providers[kind]
		if !ok {
			continue
		}
		sc, err := p.store.GetCredential(ctx, ownerID, string(kind))
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, mailer.Credential{}, fmt.Errorf("dispatch: load %s credential: %w", kind, err)
		}
		cred := mailer.Credential{Kind: kind, Token: sc.Token, Authorized: sc.Authorized}
		if provider.CheckAuthorized(cred) {
			return provider, cred, nil
		}
	}
	return nil, mailer.Credential{}, ErrNoAuthorizedProvider
}

func (p *Pipeline) message(rec *store.SendRecord) mailer.Message {
	return mailer.Message{
		To:      rec.Recipients,
		Subject: rec.Subject,
		HTML:    rec.HTML,
		Text:    rec.Text,
		Headers: map[string]string{HeaderSendID: rec.ID},
		Tags: map[string]string{
			"send_id":          rec.ID,
			"template_id":      rec.TemplateID,
			"template_version": strconv.Itoa(rec.TemplateVersion),
		},
	}
}

func (p *Pipeline) finalize(ctx context.Context, rec *store.SendRecord, kind mailer.Kind, res mailer.Result) (*store.SendRecord, error) {
	t := store.Transition{To: store.StatusFailed, Provider: string(kind)}
	if res.Success {
		sentAt := p.now()
		t.To = store.StatusSent
		t.SentAt = &sentAt
		t.ProviderMessageID = res.ProviderMessageID
	} else {
		t.Error = res.Err.Error()
	}

	out, err := p.store.Transition(ctx, rec.ID, store.StatusPending, t)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to finalize send",
			slog.String("provider", string(kind)),
			slog.Bool("delivered", res.Success),
			slog.String("error", err.Error()),
		)
		return rec, fmt.Errorf("dispatch: finalize send %s: %w", rec.ID, err)
	}

	if !res.Success {
		p.log.WarnContext(ctx, "provider send failed",
			slog.String("provider", string(kind)),
			slog.String("error", t.Error),
		)
		return out, res.Err
	}

	p.log.InfoContext(ctx, "send delivered",
		slog.String("provider", string(kind)),
		slog.String("provider_message_id", res.ProviderMessageID),
	)
	p.archiveHTML(ctx, out)
	return out, nil
}

func (p *Pipeline) archiveHTML(ctx context.Context, rec *store.SendRecord) {
	if p.archive == nil {
		return
	}
	key := storage.SendKey(rec.OwnerID, rec.ID)
	if err := p.archive.Put(ctx, key, "text/html; charset=utf-8", []byte(rec.HTML)); err != nil {
		p.log.ErrorContext(ctx, "failed to archive send", slog.String("key", key), slog.String("error", err.Error()))
	}
}
