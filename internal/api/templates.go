package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/notemail/internal/dispatch"
	"github.com/dmitrymomot/notemail/pkg/locale"
	"github.com/dmitrymomot/notemail/pkg/templating"
)

type templateRequest struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (a *API) createTemplate(w http.ResponseWriter, r *http.Request) error {
	var body templateRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	t, err := a.templates.Create(r.Context(), ownerFrom(r.Context()), body.Name, body.Subject, body.Body)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, t)
}

func (a *API) getTemplate(w http.ResponseWriter, r *http.Request) error {
	t, err := a.templates.Get(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, t)
}

func (a *API) updateTemplate(w http.ResponseWriter, r *http.Request) error {
	var body templateRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	t, err := a.templates.Update(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"), body.Subject, body.Body)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, t)
}

func (a *API) deactivateTemplate(w http.ResponseWriter, r *http.Request) error {
	if err := a.templates.Deactivate(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) listVersions(w http.ResponseWriter, r *http.Request) error {
	versions, err := a.templates.Versions(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (a *API) getVersion(w http.ResponseWriter, r *http.Request) error {
	v, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || v < 1 {
		return fmt.Errorf("%w: version must be a positive integer", ErrBadRequest)
	}
	tv, err := a.templates.Version(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"), v)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, tv)
}

// previewTemplate renders against a note. The locale comes from the
// locale query parameter, then Accept-Language.
func (a *API) previewTemplate(w http.ResponseWriter, r *http.Request) error {
	noteID := r.URL.Query().Get("note_id")
	if noteID == "" {
		return fmt.Errorf("%w: note_id is required", ErrBadRequest)
	}

	lang := r.URL.Query().Get("locale")
	if lang == "" {
		if h := r.Header.Get("Accept-Language"); h != "" {
			lang = locale.FromAcceptLanguage(h, locale.Default()).Tag().String()
		}
	}

	res, err := a.pipeline.RenderPreview(r.Context(), dispatch.PreviewRequest{
		OwnerID:    ownerFrom(r.Context()),
		TemplateID: chi.URLParam(r, "id"),
		NoteID:     noteID,
		Locale:     lang,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

func (a *API) validateTemplate(w http.ResponseWriter, r *http.Request) error {
	var body templateRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a.pipeline.ValidateTemplate(body.Subject, body.Body))
}

func (a *API) extractVariables(w http.ResponseWriter, r *http.Request) error {
	var body templateRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string][]string{
		"variables": templating.ExtractVariables(body.Subject, body.Body),
	})
}
