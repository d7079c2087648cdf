package domain

import (
	"fmt"
	"strings"
)

type EntityType string

const (
	EntityTour    EntityType = "tour"
	EntityHotel   EntityType = "hotel"
	EntityPackage EntityType = "package"
)

func ParseEntityType(s string) (EntityType, error) {
	switch t := EntityType(strings.ToLower(strings.TrimSpace(s))); t {
	case EntityTour, EntityHotel, EntityPackage:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntity, s)
}

// Payload is the entity-specific body exchanged with the catalog API.
// Money fields are in minor units; images are imageUrl + galleryUrls.
type Payload map[string]any

type AssetID string

type AssetRole string

const (
	RoleMain    AssetRole = "main"
	RoleGallery AssetRole = "gallery"
)

type AssetState string

const (
	AssetPending   AssetState = "pending"
	AssetPersisted AssetState = "persisted"
)

// LocalFile is an image selected by the operator but not uploaded yet.
type LocalFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Asset is one image of a draft. A pending asset carries File and Preview;
// a persisted asset carries URL. Never both.
type Asset struct {
	ID      AssetID    `json:"id"`
	Role    AssetRole  `json:"role"`
	Order   int        `json:"order"`
	State   AssetState `json:"state"`
	URL     string     `json:"url,omitempty"`
	Preview string     `json:"preview,omitempty"`
	File    *LocalFile `json:"-"`
}

func (a Asset) IsMain() bool { return a.Role == RoleMain }

// ImageSet is what the catalog payload carries for images.
type ImageSet struct {
	MainURL     string   `json:"imageUrl"`
	GalleryURLs []string `json:"galleryUrls"`
}
