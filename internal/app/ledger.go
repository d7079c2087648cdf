package app

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"travel_desk/internal/domain"
)

// ImageLedger is the single source of truth for a draft's images.
// At most one asset holds RoleMain at any time. Not safe for concurrent
// use; the owning Session serializes access.
type ImageLedger struct {
	previews Previews
	root     string
	dupRoot  *regexp.Regexp
	assets   []domain.Asset // ordered by Order
	next     int
}

func NewImageLedger(p Previews, uploadsRoot string) *ImageLedger {
	root := strings.Trim(uploadsRoot, "/")
	if root == "" {
		root = "uploads"
	}
	q := regexp.QuoteMeta(root)
	return &ImageLedger{
		previews: p,
		root:     root,
		dupRoot:  regexp.MustCompile(`(^|/)` + q + `(?:/` + q + `)+(/|$)`),
	}
}

// AttachLocal adds a pending image. It becomes main when no main exists.
func (l *ImageLedger) AttachLocal(f domain.LocalFile) domain.AssetID {
	a := domain.Asset{
		ID:    domain.AssetID(uuid.NewString()),
		Role:  l.defaultRole(),
		Order: l.nextOrder(),
		State: domain.AssetPending,
		File:  &f,
	}
	if l.previews != nil {
		a.Preview = l.previews.Create(f)
	}
	l.assets = append(l.assets, a)
	return a.ID
}

// AttachPersisted adds an image that already lives on the server, e.g.
// when an existing entity is loaded for editing.
func (l *ImageLedger) AttachPersisted(rawURL string, role domain.AssetRole) (domain.AssetID, error) {
	u, err := l.NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	if role == domain.RoleMain {
		l.clearMain()
	} else {
		role = domain.RoleGallery
	}
	a := domain.Asset{
		ID:    domain.AssetID(uuid.NewString()),
		Role:  role,
		Order: l.nextOrder(),
		State: domain.AssetPersisted,
		URL:   u,
	}
	l.assets = append(l.assets, a)
	return a.ID, nil
}

// restore re-creates a persisted asset from a snapshot, keeping id and order.
func (l *ImageLedger) restore(id domain.AssetID, rawURL string, role domain.AssetRole, order int) error {
	u, err := l.NormalizeURL(rawURL)
	if err != nil {
		return err
	}
	if _, ok := l.find(id); ok {
		return fmt.Errorf("duplicate asset %s", id)
	}
	if role == domain.RoleMain {
		l.clearMain()
	} else {
		role = domain.RoleGallery
	}
	l.assets = append(l.assets, domain.Asset{ID: id, Role: role, Order: order, State: domain.AssetPersisted, URL: u})
	sort.SliceStable(l.assets, func(i, j int) bool { return l.assets[i].Order < l.assets[j].Order })
	if order >= l.next {
		l.next = order + 1
	}
	return nil
}

func (l *ImageLedger) PromoteToMain(id domain.AssetID) error {
	i, ok := l.find(id)
	if !ok {
		return fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
	}
	l.clearMain()
	l.assets[i].Role = domain.RoleMain
	return nil
}

// Remove drops an asset and releases its preview handle. Removing the main
// image does not promote another one; the ledger is left without a main.
func (l *ImageLedger) Remove(id domain.AssetID) error {
	i, ok := l.find(id)
	if !ok {
		return fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
	}
	l.release(l.assets[i])
	l.assets = append(l.assets[:i], l.assets[i+1:]...)
	return nil
}

// Resolve turns a pending asset into a persisted one holding url, keeping
// id, role and order.
func (l *ImageLedger) Resolve(id domain.AssetID, rawURL string) error {
	i, ok := l.find(id)
	if !ok {
		return fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
	}
	if l.assets[i].State != domain.AssetPending {
		return fmt.Errorf("asset %s already persisted", id)
	}
	u, err := l.NormalizeURL(rawURL)
	if err != nil {
		return err
	}
	old := l.assets[i]
	l.release(old)
	l.assets[i] = domain.Asset{ID: old.ID, Role: old.Role, Order: old.Order, State: domain.AssetPersisted, URL: u}
	return nil
}

// ListForSubmission is only valid once every asset is persisted.
func (l *ImageLedger) ListForSubmission() (domain.ImageSet, error) {
	out := domain.ImageSet{GalleryURLs: []string{}}
	for _, a := range l.assets {
		if a.State == domain.AssetPending {
			return domain.ImageSet{}, domain.ErrNotReady
		}
		if a.IsMain() {
			out.MainURL = a.URL
			continue
		}
		out.GalleryURLs = append(out.GalleryURLs, a.URL)
	}
	return out, nil
}

// Assets returns a copy of all assets in display order.
func (l *ImageLedger) Assets() []domain.Asset {
	out := make([]domain.Asset, len(l.assets))
	copy(out, l.assets)
	return out
}

func (l *ImageLedger) Pending() []domain.Asset {
	var out []domain.Asset
	for _, a := range l.assets {
		if a.State == domain.AssetPending {
			out = append(out, a)
		}
	}
	return out
}

func (l *ImageLedger) Main() (domain.Asset, bool) {
	for _, a := range l.assets {
		if a.IsMain() {
			return a, true
		}
	}
	return domain.Asset{}, false
}

func (l *ImageLedger) Len() int { return len(l.assets) }

// Release revokes every outstanding preview handle. Called on disposal.
func (l *ImageLedger) Release() {
	for _, a := range l.assets {
		l.release(a)
	}
}

// NormalizeURL applies the ingestion rule for persisted URLs: anything
// carrying a local preview scheme, even behind a server prefix, is refused
// and a doubled uploads root collapses to one segment.
func (l *ImageLedger) NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty url", domain.ErrInvalidValue)
	}
	low := strings.ToLower(s)
	if strings.Contains(low, PreviewScheme) || strings.Contains(low, "data:") {
		return "", domain.ErrLocalURL
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidValue, err)
	}
	p := l.dupRoot.ReplaceAllString(u.Path, "${1}"+l.root+"${2}")
	if p != u.Path {
		u.Path = p
		u.RawPath = ""
	}
	return u.String(), nil
}

func (l *ImageLedger) defaultRole() domain.AssetRole {
	if _, ok := l.Main(); ok {
		return domain.RoleGallery
	}
	return domain.RoleMain
}

func (l *ImageLedger) clearMain() {
	for i := range l.assets {
		if l.assets[i].IsMain() {
			l.assets[i].Role = domain.RoleGallery
		}
	}
}

func (l *ImageLedger) nextOrder() int {
	n := l.next
	l.next++
	return n
}

func (l *ImageLedger) find(id domain.AssetID) (int, bool) {
	for i, a := range l.assets {
		if a.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (l *ImageLedger) release(a domain.Asset) {
	if a.State == domain.AssetPending && a.Preview != "" && l.previews != nil {
		l.previews.Revoke(a.Preview)
	}
}
