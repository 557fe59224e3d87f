package templating

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/aymerick/raymond"

	"github.com/dmitrymomot/notemail/pkg/cache"
	"github.com/dmitrymomot/notemail/pkg/logger"
	"github.com/dmitrymomot/notemail/pkg/sanitizer"
)

// Result is a rendered email.
type Result struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Renderer compiles and executes templates. Compiled templates are memoized
// by content hash, so rendering is a pure function of its inputs.
type Renderer struct {
	compiled cache.Cache[*raymond.Template]
	logger   *slog.Logger
}

// compiledTTL bounds how long an unused compiled template stays memoized.
const compiledTTL = time.Hour

// Option configures a Renderer.
type Option func(*Renderer)

// WithCompiledCache replaces the default in-process memo of compiled templates.
func WithCompiledCache(c cache.Cache[*raymond.Template]) Option {
	return func(r *Renderer) {
		r.compiled = c
	}
}

// WithLogger sets the logger used for memo diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = l
	}
}

// NewRenderer creates a Renderer backed by a bounded in-memory memo.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		logger: logger.NewNope(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.compiled == nil {
		r.compiled = cache.NewMemory[*raymond.Template](
			cache.WithMaxEntries(1024),
			cache.WithDefaultTTL(compiledTTL),
		)
	}
	return r
}

// Close releases the memo.
func (r *Renderer) Close() error {
	return r.compiled.Close()
}

// Render executes body and subject against bindings. Variables referenced
// by either template but absent from bindings resolve to "[name]".
// The HTML result is sanitized; the text result is derived from it.
func (r *Renderer) Render(ctx context.Context, body, subject string, bindings map[string]any) (*Result, error) {
	bodyTpl, err := r.compile(ctx, FieldBody, body)
	if err != nil {
		return nil, err
	}
	subjectTpl, err := r.compile(ctx, FieldSubject, subject)
	if err != nil {
		return nil, err
	}

	data := withPlaceholders(bindings, ExtractVariables(subject, body))

	renderedBody, err := bodyTpl.Exec(data)
	if err != nil {
		return nil, errors.Join(ErrRenderFailed, err)
	}
	renderedSubject, err := subjectTpl.Exec(data)
	if err != nil {
		return nil, errors.Join(ErrRenderFailed, err)
	}

	html := sanitizer.HTML(renderedBody)

	return &Result{
		Subject: sanitizer.SingleLine(sanitizer.ToText(renderedSubject)),
		HTML:    html,
		Text:    sanitizer.ToText(html),
	}, nil
}

func (r *Renderer) compile(ctx context.Context, field, src string) (*raymond.Template, error) {
	sum := sha256.Sum256([]byte(src))
	key := "tpl:" + hex.EncodeToString(sum[:])

	tpl, err := cache.GetOrSet(ctx, r.compiled, key, func(context.Context) (*raymond.Template, time.Duration, error) {
		r.logger.DebugContext(ctx, "compiling template", slog.String("hash", key[4:16]))
		tpl, err := raymond.Parse(src)
		if err != nil {
			return nil, 0, err
		}
		return tpl, compiledTTL, nil
	})
	if err != nil {
		return nil, &SyntaxError{Field: field, Err: err}
	}
	return tpl, nil
}

func withPlaceholders(bindings map[string]any, vars []string) map[string]any {
	data := make(map[string]any, len(bindings)+len(vars))
	for k, v := range bindings {
		data[k] = v
	}
	for _, name := range vars {
		if _, ok := data[name]; !ok {
			data[name] = "[" + name + "]"
		}
	}
	return data
}
