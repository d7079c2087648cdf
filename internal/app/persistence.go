package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"travel_desk/internal/domain"
)

const snapshotVersion = 1

// SnapshotPrefix starts every draft snapshot key.
const SnapshotPrefix = "draft:"

func SnapshotKey(namespace string, t domain.EntityType) string {
	return SnapshotPrefix + namespace + ":" + string(t)
}

type snapshotDoc struct {
	Version          int               `json:"v"`
	EntityType       domain.EntityType `json:"entityType"`
	EntityID         string            `json:"entityId,omitempty"`
	Fields           map[string]any    `json:"fields"`
	Images           []snapshotImage   `json:"images"`
	CreatedLocallyAt time.Time         `json:"createdLocallyAt"`
	SavedAt          time.Time         `json:"savedAt"`
}

type snapshotImage struct {
	ID    domain.AssetID   `json:"id"`
	URL   string           `json:"url"`
	Role  domain.AssetRole `json:"role"`
	Order int              `json:"order"`
}

// Persistence snapshots drafts of one namespace into the KV store.
// Only persisted images are written; pending blobs cannot outlive the
// process that holds them.
type Persistence struct {
	kv          domain.KVStore
	namespace   string
	maxAge      time.Duration
	previews    Previews
	uploadsRoot string
	now         func() time.Time
}

func NewPersistence(kv domain.KVStore, namespace string, maxAge time.Duration, p Previews, uploadsRoot string) *Persistence {
	return &Persistence{
		kv:          kv,
		namespace:   namespace,
		maxAge:      maxAge,
		previews:    p,
		uploadsRoot: uploadsRoot,
		now:         time.Now,
	}
}

// Snapshot overwrites the stored draft for d.Type and clears its dirty flag.
// The caller holds the session lock.
func (p *Persistence) Snapshot(ctx context.Context, d *Draft) error {
	doc := snapshotDoc{
		Version:          snapshotVersion,
		EntityType:       d.Type,
		EntityID:         d.ID,
		Fields:           d.Fields.Values(),
		Images:           []snapshotImage{},
		CreatedLocallyAt: d.CreatedLocallyAt,
		SavedAt:          p.now().UTC(),
	}
	for _, a := range d.Images.Assets() {
		if a.State != domain.AssetPersisted {
			continue
		}
		doc.Images = append(doc.Images, snapshotImage{ID: a.ID, URL: a.URL, Role: a.Role, Order: a.Order})
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := p.kv.SetString(ctx, SnapshotKey(p.namespace, d.Type), string(b)); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	d.dirty = false
	return nil
}

// Restore returns a fresh Draft built from the last snapshot, or nil when
// there is none, it cannot be parsed, or it is older than the max age.
// Only a KV transport failure is returned as an error.
func (p *Persistence) Restore(ctx context.Context, t domain.EntityType) (*Draft, error) {
	key := SnapshotKey(p.namespace, t)
	raw, ok, err := p.kv.GetString(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var doc snapshotDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("corrupt draft snapshot ignored")
		return nil, nil
	}
	if doc.Version != snapshotVersion || doc.EntityType != t {
		log.Warn().Str("key", key).Int("v", doc.Version).Str("entity", string(doc.EntityType)).
			Msg("unexpected draft snapshot ignored")
		return nil, nil
	}
	if p.maxAge > 0 && !doc.CreatedLocallyAt.IsZero() && p.now().Sub(doc.CreatedLocallyAt) > p.maxAge {
		return nil, nil
	}

	d := NewDraft(t, p.previews, p.uploadsRoot, doc.CreatedLocallyAt)
	d.ID = doc.EntityID
	if err := d.Fields.replace(doc.Fields); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("corrupt draft snapshot fields ignored")
		return nil, nil
	}
	for _, img := range doc.Images {
		if err := d.Images.restore(img.ID, img.URL, img.Role, img.Order); err != nil {
			log.Warn().Err(err).Str("key", key).Str("asset", string(img.ID)).Msg("snapshot image skipped")
		}
	}
	return d, nil
}

func (p *Persistence) Discard(ctx context.Context, t domain.EntityType) error {
	if err := p.kv.Delete(ctx, SnapshotKey(p.namespace, t)); err != nil {
		return fmt.Errorf("discard snapshot: %w", err)
	}
	return nil
}

// SnapshotCreatedAt reads only the creation time of a stored snapshot.
func SnapshotCreatedAt(raw string) (time.Time, error) {
	var doc struct {
		CreatedLocallyAt time.Time `json:"createdLocallyAt"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return time.Time{}, err
	}
	return doc.CreatedLocallyAt, nil
}
