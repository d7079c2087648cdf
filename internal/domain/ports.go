package domain

import (
	"context"
	"time"
)

// CatalogAPI is the REST backend (or the local MySQL store standing in for it).
type CatalogAPI interface {
	Create(ctx context.Context, t EntityType, p Payload) (string, error)
	Update(ctx context.Context, t EntityType, id string, p Payload) (string, error)
	Get(ctx context.Context, t EntityType, id string) (Payload, error)
}

// Uploader stores one image and returns its canonical URL. No partial results.
type Uploader interface {
	UploadImage(ctx context.Context, f LocalFile) (string, error)
}

// KVStore is the durable key-value store for draft snapshots.
// Only single-key overwrite is atomic.
type KVStore interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, val string) error
	Delete(ctx context.Context, key string) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// EventPublisher announces catalog writes to downstream consumers.
type EventPublisher interface {
	PublishCatalogSaved(ctx context.Context, ev CatalogSaved) error
}

type CatalogSaved struct {
	EntityType EntityType `json:"entityType"`
	ID         string     `json:"id"`
	Created    bool       `json:"created"`
	At         time.Time  `json:"at"`
}
