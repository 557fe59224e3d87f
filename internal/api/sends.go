package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/notemail/internal/dispatch"
	"github.com/dmitrymomot/notemail/internal/store"
	"github.com/dmitrymomot/notemail/pkg/id"
)

const (
	maxListLimit   = 200
	archiveLinkTTL = 15 * time.Minute
)

type sendRequest struct {
	NoteID         string   `json:"note_id"`
	TemplateID     string   `json:"template_id"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
	Provider       string   `json:"provider,omitempty"`
	Recipients     []string `json:"recipients"`
}

type acceptedResponse struct {
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	SendID         string `json:"send_id,omitempty"`
	Status         string `json:"status"`
}

// createSend dispatches synchronously, or enqueues with async=true.
// A provider that outlives the dispatch deadline answers 202 with the
// pending record.
func (a *API) createSend(w http.ResponseWriter, r *http.Request) error {
	var body sendRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}

	key := body.IdempotencyKey
	if h := r.Header.Get(HeaderIdempotencyKey); h != "" {
		if key != "" && key != h {
			return fmt.Errorf("%w: idempotency key in header and body differ", ErrBadRequest)
		}
		key = h
	}

	req := dispatch.Request{
		OwnerID:        ownerFrom(r.Context()),
		NoteID:         body.NoteID,
		TemplateID:     body.TemplateID,
		Recipients:     body.Recipients,
		IdempotencyKey: key,
		Provider:       body.Provider,
	}

	if async(r) {
		if a.jobs == nil {
			return ErrAsyncUnavailable
		}
		if req.IdempotencyKey == "" {
			req.IdempotencyKey = id.NewIdempotencyKey()
		}
		if err := a.jobs.Enqueue(r.Context(), dispatch.TaskSend, req, dispatch.SendJobOptions(req.IdempotencyKey)...); err != nil {
			return fmt.Errorf("api: enqueue send: %w", err)
		}
		return writeJSON(w, http.StatusAccepted, acceptedResponse{
			IdempotencyKey: req.IdempotencyKey,
			Status:         "queued",
		})
	}

	out, err := a.pipeline.Dispatch(r.Context(), req)
	return a.respondOutcome(w, out, err, http.StatusCreated)
}

func (a *API) retrySend(w http.ResponseWriter, r *http.Request) error {
	ownerID, sendID := ownerFrom(r.Context()), chi.URLParam(r, "id")

	if async(r) {
		if a.jobs == nil {
			return ErrAsyncUnavailable
		}
		var delay time.Duration
		if v := r.URL.Query().Get("delay"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d < 0 {
				return fmt.Errorf("%w: delay must be a non-negative duration", ErrBadRequest)
			}
			delay = d
		}
		rec, err := a.pipeline.Send(r.Context(), ownerID, sendID)
		if err != nil {
			return err
		}
		if rec.Status != store.StatusFailed {
			return &HTTPError{
				Err:     dispatch.ErrNotRetryable,
				Send:    rec,
				Status:  http.StatusConflict,
				Code:    "not_retryable",
				Message: fmt.Sprintf("send is %s", rec.Status),
			}
		}
		payload := dispatch.RetryPayload{OwnerID: ownerID, SendID: sendID}
		if err := a.jobs.Enqueue(r.Context(), dispatch.TaskRetry, payload, dispatch.RetryJobOptions(sendID, delay)...); err != nil {
			return fmt.Errorf("api: enqueue retry: %w", err)
		}
		return writeJSON(w, http.StatusAccepted, acceptedResponse{SendID: sendID, Status: "queued"})
	}

	out, err := a.pipeline.Retry(r.Context(), ownerID, sendID)
	return a.respondOutcome(w, out, err, http.StatusOK)
}

// respondOutcome writes the record of a dispatch or retry. Errors that
// come with a record carry it in the error body.
func (a *API) respondOutcome(w http.ResponseWriter, out *dispatch.Outcome, err error, created int) error {
	switch {
	case err == nil:
		status := created
		if out.Replayed {
			status = http.StatusOK
		}
		return writeJSON(w, status, out)
	case errors.Is(err, dispatch.ErrDispatchTimeout) && out != nil:
		return writeJSON(w, http.StatusAccepted, out)
	case out != nil:
		he := toHTTPError(err)
		he.Send = out.Record
		return he
	default:
		return err
	}
}

func (a *API) getSend(w http.ResponseWriter, r *http.Request) error {
	rec, err := a.pipeline.Send(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rec)
}

// getArchive serves the archived HTML of a sent record, or a presigned
// link to it with presign=true.
func (a *API) getArchive(w http.ResponseWriter, r *http.Request) error {
	owner, sendID := ownerFrom(r.Context()), chi.URLParam(r, "id")

	if r.URL.Query().Get("presign") == "true" {
		u, err := a.pipeline.ArchiveURL(r.Context(), owner, sendID, archiveLinkTTL)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, map[string]any{
			"url":        u,
			"expires_in": int(archiveLinkTTL.Seconds()),
		})
	}

	data, err := a.pipeline.ArchivedHTML(r.Context(), owner, sendID)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(data)
	return err
}

func (a *API) listSends(w http.ResponseWriter, r *http.Request) error {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest)
		}
		limit = min(n, maxListLimit)
	}

	sends, err := a.pipeline.Sends(r.Context(), ownerFrom(r.Context()), limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"sends": sends})
}

func async(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	return v
}
