package app

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"travel_desk/internal/domain"
)

type DraftConfig struct {
	UploadsRoot string
	Debounce    time.Duration // 0 snapshots synchronously on every edit
	MaxAge      time.Duration // 0 keeps snapshots forever
}

// Session is one operator's edit of one entity type. All methods are safe
// for concurrent use; edits are refused with ErrBusy while a submission
// is in flight.
type Session struct {
	mu        sync.Mutex
	namespace string
	schema    Schema
	draft     *Draft
	store     *Persistence
	pipeline  *Pipeline
	state     SubmitState
	debounce  time.Duration
	timer     *time.Timer
	forget    func()
}

func (s *Session) Namespace() string { return s.namespace }

func (s *Session) Type() domain.EntityType { return s.schema.Type }

func (s *Session) State() SubmitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) View() DraftView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.view(s.state)
}

func (s *Session) Get(path string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft.Disposed() {
		return nil, domain.ErrDisposed
	}
	return s.draft.Fields.Get(path)
}

func (s *Session) Set(ctx context.Context, path string, v any) error {
	return s.mutate(ctx, func(d *Draft) error { return d.Fields.Set(path, v) })
}

func (s *Session) AppendChild(ctx context.Context, arrayPath string, rec map[string]any) (int, error) {
	var idx int
	err := s.mutate(ctx, func(d *Draft) error {
		var err error
		idx, err = d.Fields.AppendChild(arrayPath, rec)
		return err
	})
	return idx, err
}

func (s *Session) RemoveChild(ctx context.Context, arrayPath string, index int) error {
	return s.mutate(ctx, func(d *Draft) error { return d.Fields.RemoveChild(arrayPath, index) })
}

func (s *Session) AttachLocal(ctx context.Context, f domain.LocalFile) (domain.AssetID, error) {
	var id domain.AssetID
	err := s.mutate(ctx, func(d *Draft) error {
		id = d.Images.AttachLocal(f)
		return nil
	})
	return id, err
}

func (s *Session) AttachPersisted(ctx context.Context, rawURL string, role domain.AssetRole) (domain.AssetID, error) {
	var id domain.AssetID
	err := s.mutate(ctx, func(d *Draft) error {
		var err error
		id, err = d.Images.AttachPersisted(rawURL, role)
		return err
	})
	return id, err
}

func (s *Session) PromoteToMain(ctx context.Context, id domain.AssetID) error {
	return s.mutate(ctx, func(d *Draft) error { return d.Images.PromoteToMain(id) })
}

func (s *Session) RemoveImage(ctx context.Context, id domain.AssetID) error {
	return s.mutate(ctx, func(d *Draft) error { return d.Images.Remove(id) })
}

// Validate may rewrite the derived duration; that counts as an edit.
func (s *Session) Validate(ctx context.Context) (ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return ValidationResult{}, err
	}
	return s.validateLocked(ctx)
}

func (s *Session) Submit(ctx context.Context) (SubmitResult, error) {
	return s.pipeline.Submit(ctx, s)
}

// Flush writes a pending debounced snapshot now.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft.Disposed() || !s.draft.dirty {
		return nil
	}
	s.stopTimerLocked()
	return s.store.Snapshot(ctx, s.draft)
}

// Discard drops the draft and its snapshot. Allowed mid-submission: in-flight
// uploads finish but their results are thrown away.
func (s *Session) Discard(ctx context.Context) error {
	s.mu.Lock()
	if s.draft.Disposed() {
		s.mu.Unlock()
		return domain.ErrDisposed
	}
	s.stopTimerLocked()
	s.draft.dispose()
	err := s.store.Discard(ctx, s.draft.Type)
	s.mu.Unlock()
	s.forget()
	return err
}

func (s *Session) mutate(ctx context.Context, fn func(d *Draft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if err := fn(s.draft); err != nil {
		return err
	}
	s.touchLocked(ctx)
	return nil
}

func (s *Session) usableLocked() error {
	if s.draft.Disposed() {
		return domain.ErrDisposed
	}
	if s.state.InFlight() {
		return domain.ErrBusy
	}
	return nil
}

func (s *Session) validateLocked(ctx context.Context) (ValidationResult, error) {
	var before any
	if s.schema.Dates != nil {
		before, _ = s.draft.Fields.Get(s.schema.Dates.Duration)
	}
	res, err := Validate(s.schema, s.draft.Fields, s.draft.Images)
	if err != nil {
		return ValidationResult{}, err
	}
	if s.schema.Dates != nil {
		after, _ := s.draft.Fields.Get(s.schema.Dates.Duration)
		if !reflect.DeepEqual(before, after) {
			s.touchLocked(ctx)
		}
	}
	return res, nil
}

// touchLocked marks the draft dirty and snapshots now or after the
// debounce interval. Only the last snapshot matters.
func (s *Session) touchLocked(ctx context.Context) {
	s.draft.dirty = true
	bg := context.WithoutCancel(ctx)
	if s.debounce <= 0 {
		s.snapshotLocked(bg)
		return
	}
	s.stopTimerLocked()
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.draft.Disposed() || !s.draft.dirty {
			return
		}
		s.snapshotLocked(bg)
	})
}

func (s *Session) snapshotLocked(ctx context.Context) {
	if err := s.store.Snapshot(ctx, s.draft); err != nil {
		log.Warn().Err(err).Str("session", s.namespace).Str("entity", string(s.draft.Type)).
			Msg("draft snapshot failed")
	}
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

/********** registry **********/

type sessionKey struct {
	namespace string
	entity    domain.EntityType
}

// Drafts owns the live sessions, one per (namespace, entity type).
type Drafts struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Session

	kv       domain.KVStore
	queries  *QueryService
	pipeline *Pipeline
	previews Previews
	cfg      DraftConfig
	now      func() time.Time
}

func NewDrafts(kv domain.KVStore, q *QueryService, p *Pipeline, previews Previews, cfg DraftConfig) *Drafts {
	return &Drafts{
		sessions: map[sessionKey]*Session{},
		kv:       kv,
		queries:  q,
		pipeline: p,
		previews: previews,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Open returns the live session, else resumes the stored snapshot, else
// starts a new draft. resumed is false only for a brand-new draft.
func (r *Drafts) Open(ctx context.Context, namespace string, t domain.EntityType) (*Session, bool, error) {
	sc, err := SchemaFor(t)
	if err != nil {
		return nil, false, err
	}
	k := sessionKey{namespace, t}
	if s := r.live(k); s != nil {
		return s, true, nil
	}

	store := r.persistence(namespace)
	d, err := store.Restore(ctx, t)
	if err != nil {
		return nil, false, err
	}
	resumed := d != nil
	if d == nil {
		d = NewDraft(t, r.previews, r.cfg.UploadsRoot, r.now())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[k]; ok {
		d.dispose()
		return s, true, nil
	}
	s := r.newSessionLocked(k, sc, d, store)
	log.Info().Str("session", namespace).Str("entity", string(t)).Bool("resumed", resumed).Msg("draft opened")
	return s, resumed, nil
}

// OpenExisting starts editing a stored entity. A live draft of the same
// entity is returned as is; a draft of a different one is replaced.
func (r *Drafts) OpenExisting(ctx context.Context, namespace string, t domain.EntityType, id string) (*Session, error) {
	sc, err := SchemaFor(t)
	if err != nil {
		return nil, err
	}
	if r.queries == nil {
		return nil, fmt.Errorf("open %s %s: no catalog configured", t, id)
	}
	k := sessionKey{namespace, t}
	if old := r.live(k); old != nil {
		v := old.View()
		if v.ID == id {
			return old, nil
		}
		if v.State.InFlight() {
			return nil, domain.ErrBusy
		}
		if err := old.Discard(ctx); err != nil && err != domain.ErrDisposed {
			return nil, err
		}
	}

	p, err := r.queries.GetEntity(ctx, t, id)
	if err != nil {
		return nil, err
	}
	values, imgs, err := DecodePayload(sc, p)
	if err != nil {
		return nil, err
	}

	d := NewDraft(t, r.previews, r.cfg.UploadsRoot, r.now())
	d.ID = id
	if err := d.Fields.replace(values); err != nil {
		return nil, err
	}
	if imgs.MainURL != "" {
		if _, err := d.Images.AttachPersisted(imgs.MainURL, domain.RoleMain); err != nil {
			log.Warn().Err(err).Str("entity", string(t)).Str("id", id).Msg("main image url rejected")
		}
	}
	for _, u := range imgs.GalleryURLs {
		if _, err := d.Images.AttachPersisted(u, domain.RoleGallery); err != nil {
			log.Warn().Err(err).Str("entity", string(t)).Str("id", id).Msg("gallery image url rejected")
		}
	}

	store := r.persistence(namespace)
	if err := store.Snapshot(ctx, d); err != nil {
		log.Warn().Err(err).Str("session", namespace).Msg("initial snapshot failed")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[k]; ok {
		s.stopTimerAndDisposeIfIdle()
	}
	s := r.newSessionLocked(k, sc, d, store)
	log.Info().Str("session", namespace).Str("entity", string(t)).Str("id", id).Msg("entity opened for editing")
	return s, nil
}

// Lookup returns the live session or ErrNotFound.
func (r *Drafts) Lookup(namespace string, t domain.EntityType) (*Session, error) {
	if _, err := SchemaFor(t); err != nil {
		return nil, err
	}
	if s := r.live(sessionKey{namespace, t}); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("draft %s/%s: %w", namespace, t, domain.ErrNotFound)
}

// Discard drops the live session, if any, and the stored snapshot.
func (r *Drafts) Discard(ctx context.Context, namespace string, t domain.EntityType) error {
	if _, err := SchemaFor(t); err != nil {
		return err
	}
	if s := r.live(sessionKey{namespace, t}); s != nil {
		if err := s.Discard(ctx); err != nil && err != domain.ErrDisposed {
			return err
		}
		return nil
	}
	return r.persistence(namespace).Discard(ctx, t)
}

// FlushAll writes every pending snapshot; used on shutdown.
func (r *Drafts) FlushAll(ctx context.Context) error {
	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	var first error
	for _, s := range live {
		if err := s.Flush(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *Drafts) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Drafts) live(k sessionKey) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[k]
}

func (r *Drafts) persistence(namespace string) *Persistence {
	return NewPersistence(r.kv, namespace, r.cfg.MaxAge, r.previews, r.cfg.UploadsRoot)
}

func (r *Drafts) newSessionLocked(k sessionKey, sc Schema, d *Draft, store *Persistence) *Session {
	s := &Session{
		namespace: k.namespace,
		schema:    sc,
		draft:     d,
		store:     store,
		pipeline:  r.pipeline,
		state:     StateIdle,
		debounce:  r.cfg.Debounce,
	}
	s.forget = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.sessions[k] == s {
			delete(r.sessions, k)
		}
	}
	r.sessions[k] = s
	return s
}

// stopTimerAndDisposeIfIdle retires a session being replaced in the
// registry without touching the shared snapshot key.
func (s *Session) stopTimerAndDisposeIfIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.InFlight() {
		return
	}
	s.stopTimerLocked()
	s.draft.dispose()
}
