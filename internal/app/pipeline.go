package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"travel_desk/internal/domain"
)

type SubmitState string

const (
	StateIdle        SubmitState = "idle"
	StateUploading   SubmitState = "uploading"
	StateReconciling SubmitState = "reconciling"
	StateSubmitting  SubmitState = "submitting"
	StateDone        SubmitState = "done"
	StateFailed      SubmitState = "failed"
)

func (s SubmitState) InFlight() bool {
	return s == StateUploading || s == StateReconciling || s == StateSubmitting
}

type SubmitResult struct {
	ID      string           `json:"id"`
	Created bool             `json:"created"`
	State   SubmitState      `json:"state"`
	Dropped []domain.AssetID `json:"droppedImages,omitempty"` // gallery images whose upload failed
}

// Pipeline turns a session's draft into a catalog write. It holds only
// collaborators; per-draft state lives on the Session.
type Pipeline struct {
	uploader    domain.Uploader
	catalog     domain.CatalogAPI
	queries     *QueryService
	events      domain.EventPublisher
	concurrency int64
	now         func() time.Time
}

// NewPipeline: queries and events may be nil.
func NewPipeline(u domain.Uploader, c domain.CatalogAPI, q *QueryService, ev domain.EventPublisher, concurrency int) *Pipeline {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Pipeline{uploader: u, catalog: c, queries: q, events: ev, concurrency: int64(concurrency), now: time.Now}
}

type uploadOutcome struct {
	asset domain.Asset
	url   string
	err   error
}

// Submit runs Idle -> Uploading -> Reconciling -> Submitting -> Done|Failed.
// A second call while one is in flight gets ErrBusy.
func (p *Pipeline) Submit(ctx context.Context, s *Session) (SubmitResult, error) {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return SubmitResult{}, err
	}
	d := s.draft
	res, err := s.validateLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return SubmitResult{}, err
	}
	if !res.OK() {
		s.mu.Unlock()
		return SubmitResult{}, res.Err()
	}
	s.state = StateUploading
	pending := d.Images.Pending()
	s.mu.Unlock()

	lg := log.With().Str("session", s.namespace).Str("entity", string(d.Type)).Logger()
	lg.Info().Int("pending", len(pending)).Msg("submission started")

	outcomes := p.upload(ctx, pending)

	s.mu.Lock()
	if d.Disposed() {
		s.state = StateFailed
		s.mu.Unlock()
		lg.Info().Msg("draft disposed during upload; results discarded")
		return SubmitResult{State: StateFailed}, domain.ErrDisposed
	}
	if err := p.checkMain(d, outcomes); err != nil {
		s.state = StateFailed
		s.mu.Unlock()
		lg.Warn().Err(err).Msg("main image upload failed")
		return SubmitResult{State: StateFailed}, err
	}

	s.state = StateReconciling
	dropped := p.reconcile(d, outcomes, lg)
	if err := s.store.Snapshot(ctx, d); err != nil {
		lg.Warn().Err(err).Msg("snapshot after reconcile failed")
	}

	s.state = StateSubmitting
	imgs, err := d.Images.ListForSubmission()
	if err != nil {
		s.state = StateFailed
		s.mu.Unlock()
		return SubmitResult{State: StateFailed}, err
	}
	payload, err := BuildPayload(s.schema, d.Fields.Values(), imgs)
	if err != nil {
		s.state = StateFailed
		s.mu.Unlock()
		return SubmitResult{State: StateFailed, Dropped: dropped}, err
	}
	id := d.ID
	s.mu.Unlock()

	newID, err := p.send(ctx, d.Type, id, payload)

	s.mu.Lock()
	if err != nil {
		s.state = StateFailed
		s.mu.Unlock()
		lg.Warn().Err(err).Msg("catalog rejected submission")
		return SubmitResult{State: StateFailed, Dropped: dropped}, &domain.SubmissionError{Err: err}
	}
	d.ID = newID
	if err := s.store.Discard(ctx, d.Type); err != nil {
		lg.Warn().Err(err).Msg("snapshot discard failed")
	}
	s.state = StateDone
	s.stopTimerLocked()
	d.dispose()
	s.mu.Unlock()
	s.forget()

	p.queries.Evict(ctx, d.Type, newID)
	out := SubmitResult{ID: newID, Created: id == "", State: StateDone, Dropped: dropped}
	p.publish(ctx, d.Type, out)
	lg.Info().Str("id", newID).Bool("created", out.Created).Int("dropped", len(dropped)).Msg("submission done")
	return out, nil
}

// upload fans out one call per pending asset. Outcomes are indexed by
// dispatch order, never completion order.
func (p *Pipeline) upload(ctx context.Context, pending []domain.Asset) []uploadOutcome {
	out := make([]uploadOutcome, len(pending))
	sem := semaphore.NewWeighted(p.concurrency)
	var wg sync.WaitGroup

	for i, a := range pending {
		out[i].asset = a
		if a.File == nil {
			out[i].err = errors.New("pending asset has no local file")
			continue
		}
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			out[i].err = err
			continue
		}
		wg.Add(1)
		go func(i int, f domain.LocalFile) {
			defer wg.Done()
			defer sem.Release(1)
			u, err := p.uploader.UploadImage(ctx, f)
			out[i].url, out[i].err = u, err
		}(i, *a.File)
	}

	wg.Wait()
	return out
}

// checkMain fails before any ledger change when the main image cannot be
// persisted, so the draft stays exactly as it was.
func (p *Pipeline) checkMain(d *Draft, outcomes []uploadOutcome) error {
	for _, o := range outcomes {
		if !o.asset.IsMain() {
			continue
		}
		err := o.err
		if err == nil {
			_, err = d.Images.NormalizeURL(o.url)
		}
		if err != nil {
			return &domain.UploadError{AssetID: o.asset.ID, Main: true, Err: err}
		}
	}
	return nil
}

func (p *Pipeline) reconcile(d *Draft, outcomes []uploadOutcome, lg zerolog.Logger) []domain.AssetID {
	var dropped []domain.AssetID
	for _, o := range outcomes {
		err := o.err
		if err == nil {
			err = d.Images.Resolve(o.asset.ID, o.url)
			if errors.Is(err, domain.ErrNotFound) {
				lg.Info().Str("asset", string(o.asset.ID)).Msg("asset removed during upload")
				continue
			}
		}
		if err == nil {
			continue
		}
		lg.Warn().Err(&domain.UploadError{AssetID: o.asset.ID, Err: err}).Msg("gallery image dropped")
		if rerr := d.Images.Remove(o.asset.ID); rerr != nil && !errors.Is(rerr, domain.ErrNotFound) {
			lg.Error().Err(rerr).Str("asset", string(o.asset.ID)).Msg("drop failed")
		}
		dropped = append(dropped, o.asset.ID)
	}
	return dropped
}

func (p *Pipeline) send(ctx context.Context, t domain.EntityType, id string, payload domain.Payload) (string, error) {
	if id == "" {
		newID, err := p.catalog.Create(ctx, t, payload)
		if err != nil {
			return "", fmt.Errorf("create %s: %w", t, err)
		}
		return newID, nil
	}
	newID, err := p.catalog.Update(ctx, t, id, payload)
	if err != nil {
		return "", fmt.Errorf("update %s %s: %w", t, id, err)
	}
	if newID == "" {
		newID = id
	}
	return newID, nil
}

// publish is best-effort; the catalog write already succeeded.
func (p *Pipeline) publish(ctx context.Context, t domain.EntityType, r SubmitResult) {
	if p.events == nil {
		return
	}
	ev := domain.CatalogSaved{EntityType: t, ID: r.ID, Created: r.Created, At: p.now().UTC()}
	if err := p.events.PublishCatalogSaved(ctx, ev); err != nil {
		log.Warn().Err(err).Str("entity", string(t)).Str("id", r.ID).Msg("catalog event publish failed")
	}
}
