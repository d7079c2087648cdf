package app

import (
	"sync/atomic"
	"time"

	"travel_desk/internal/domain"
)

// Draft is one in-progress edit of a catalog entity. ID is empty while the
// entity is new.
type Draft struct {
	Type             domain.EntityType
	ID               string
	Fields           *FieldStore
	Images           *ImageLedger
	CreatedLocallyAt time.Time

	dirty    bool
	disposed atomic.Bool
}

func NewDraft(t domain.EntityType, p Previews, uploadsRoot string, now time.Time) *Draft {
	return &Draft{
		Type:             t,
		Fields:           NewFieldStore(),
		Images:           NewImageLedger(p, uploadsRoot),
		CreatedLocallyAt: now.UTC(),
	}
}

func (d *Draft) Dirty() bool { return d.dirty }

func (d *Draft) Disposed() bool { return d.disposed.Load() }

// dispose releases preview handles once; later calls are no-ops.
func (d *Draft) dispose() {
	if d.disposed.Swap(true) {
		return
	}
	d.Images.Release()
}

// DraftView is the read model handed to callers outside the session lock.
type DraftView struct {
	Type             domain.EntityType `json:"entityType"`
	ID               string            `json:"id,omitempty"`
	Fields           map[string]any    `json:"fields"`
	Images           []domain.Asset    `json:"images"`
	CreatedLocallyAt time.Time         `json:"createdLocallyAt"`
	Dirty            bool              `json:"dirty"`
	State            SubmitState       `json:"state"`
}

func (d *Draft) view(state SubmitState) DraftView {
	imgs := d.Images.Assets()
	if imgs == nil {
		imgs = []domain.Asset{}
	}
	return DraftView{
		Type:             d.Type,
		ID:               d.ID,
		Fields:           d.Fields.Values(),
		Images:           imgs,
		CreatedLocallyAt: d.CreatedLocallyAt,
		Dirty:            d.dirty,
		State:            state,
	}
}
