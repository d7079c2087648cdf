package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"travel_desk/internal/adapters/observability"
	"travel_desk/internal/app"
	"travel_desk/internal/domain"
)

const defaultMaxUpload = 10 << 20

type openResponse struct {
	Resumed bool          `json:"resumed"`
	Draft   app.DraftView `json:"draft"`
}

type fieldRequest struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

type childRequest struct {
	Path   string         `json:"path"`
	Record map[string]any `json:"record"`
}

type attachResponse struct {
	ID      domain.AssetID `json:"id"`
	Preview string         `json:"preview,omitempty"`
}

func entityOf(r *http.Request) (domain.EntityType, error) {
	return domain.ParseEntityType(chi.URLParam(r, "type"))
}

// session resolves the live draft for the caller's namespace.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*app.Session, bool) {
	t, err := entityOf(r)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	s, err := h.Drafts.Lookup(namespaceOf(r), t)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *Handlers) openDraft(w http.ResponseWriter, r *http.Request) {
	t, err := entityOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ns := namespaceOf(r)
	if id := r.URL.Query().Get("id"); id != "" {
		s, err := h.Drafts.OpenExisting(r.Context(), ns, t, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, openResponse{Resumed: false, Draft: s.View()})
		return
	}
	s, resumed, err := h.Drafts.Open(r.Context(), ns, t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	writeJSON(w, status, openResponse{Resumed: resumed, Draft: s.View()})
}

func (h *Handlers) getDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

func (h *Handlers) discardDraft(w http.ResponseWriter, r *http.Request) {
	t, err := entityOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Drafts.Discard(r.Context(), namespaceOf(r), t); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) setField(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req fieldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.Set(r.Context(), req.Path, req.Value); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

func (h *Handlers) appendChild(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req childRequest
	if !decodeBody(w, r, &req) {
		return
	}
	idx, err := s.AppendChild(r.Context(), req.Path, req.Record)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"index": idx})
}

func (h *Handlers) removeChild(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid index", "index must be an integer")
		return
	}
	if err := s.RemoveChild(r.Context(), r.URL.Query().Get("path"), idx); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// attachImage takes multipart field "file"; role=main promotes it at once.
func (h *Handlers) attachImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	limit := h.MaxUpload
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Upload", err.Error())
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Upload", "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Upload", err.Error())
		return
	}
	if int64(len(data)) > limit {
		writeProblem(w, http.StatusRequestEntityTooLarge, "Too Large", "image exceeds upload limit")
		return
	}

	id, err := s.AttachLocal(r.Context(), domain.LocalFile{
		Name:        hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if r.FormValue("role") == string(domain.RoleMain) {
		if err := s.PromoteToMain(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
	}
	out := attachResponse{ID: id}
	for _, a := range s.View().Images {
		if a.ID == id {
			out.Preview = a.Preview
		}
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) promoteImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.PromoteToMain(r.Context(), domain.AssetID(chi.URLParam(r, "id"))); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) removeImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.RemoveImage(r.Context(), domain.AssetID(chi.URLParam(r, "id"))); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validate always answers 200; problems are data.
func (h *Handlers) validate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := s.Validate(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Errors == nil {
		res.Errors = []domain.FieldError{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": res.OK(), "errors": res.Errors})
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := s.Submit(r.Context())
	entity := string(s.Type())
	if err != nil {
		var ve *domain.ValidationError
		switch {
		case errors.As(err, &ve):
			observability.ObserveSubmission(entity, "invalid")
		case errors.Is(err, domain.ErrBusy):
			observability.ObserveSubmission(entity, "busy")
		default:
			observability.ObserveSubmission(entity, string(app.StateFailed))
		}
		writeError(w, r, err)
		return
	}
	observability.ObserveSubmission(entity, string(res.State))
	if len(res.Dropped) > 0 {
		log.Warn().Str("entity", entity).Str("id", res.ID).Int("dropped", len(res.Dropped)).
			Msg("submitted with gallery images dropped")
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}
