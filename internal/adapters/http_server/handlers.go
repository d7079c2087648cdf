// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"travel_desk/internal/app"
	"travel_desk/internal/domain"
)

type Handlers struct {
	Q         *app.QueryService
	Drafts    *app.Drafts
	Previews  *app.PreviewRegistry
	MaxUpload int64 // bytes per image; 0 means 10 MiB
}

type problem struct {
	Type   string              `json:"type"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Errors []domain.FieldError `json:"errors,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/quotes", h.quote)
	if h.Q != nil {
		s.mux.Get("/v1/catalog/{type}/{id}", h.getEntity)
	}
	if h.Previews != nil {
		s.mux.Get("/v1/previews/{handle}", h.preview)
	}
	if h.Drafts == nil {
		return
	}
	s.mux.Route("/v1/drafts/{type}", func(r chi.Router) {
		r.Post("/", h.openDraft)
		r.Get("/", h.getDraft)
		r.Delete("/", h.discardDraft)
		r.Put("/fields", h.setField)
		r.Post("/children", h.appendChild)
		r.Delete("/children", h.removeChild)
		r.Post("/images", h.attachImage)
		r.Put("/images/{id}/main", h.promoteImage)
		r.Delete("/images/{id}", h.removeImage)
		r.Post("/validate", h.validate)
		r.Post("/submit", h.submit)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeError maps the error taxonomy onto problem responses. Upload and
// submission failures are checked first: they may wrap a backend 404.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *domain.ValidationError
		ue *domain.UploadError
		se *domain.SubmissionError
	)
	switch {
	case errors.As(err, &ue):
		writeProblem(w, http.StatusBadGateway, "Image Upload Failed", err.Error())
	case errors.As(err, &se):
		writeProblem(w, http.StatusBadGateway, "Submission Failed", se.Err.Error())
	case errors.As(err, &ve):
		writeProblemBody(w, problem{Type: "about:blank", Title: "Validation Failed",
			Status: http.StatusUnprocessableEntity, Errors: ve.Fields})
	case errors.Is(err, domain.ErrInvalidSelection), errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrInvalidPath), errors.Is(err, domain.ErrInvalidValue),
		errors.Is(err, domain.ErrLocalURL), errors.Is(err, domain.ErrUnknownEntity):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrNotReady), errors.Is(err, domain.ErrDisposed):
		log.Warn().Err(err).Str("route", routeOf(r)).Msg("draft state conflict")
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		log.Error().Err(err).Str("route", routeOf(r)).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	return true
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func (h *Handlers) getEntity(w http.ResponseWriter, r *http.Request) {
	t, err := domain.ParseEntityType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Q.GetEntity(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	etag, body := calcETagAndBody(p)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getEntity body")
	}
}

func (h *Handlers) preview(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if len(handle) < len(app.PreviewScheme) || handle[:len(app.PreviewScheme)] != app.PreviewScheme {
		handle = app.PreviewScheme + handle
	}
	f, ok := h.Previews.Open(handle)
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "preview revoked or unknown")
		return
	}
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}
