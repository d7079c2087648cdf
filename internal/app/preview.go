package app

import (
	"sync"

	"github.com/google/uuid"

	"travel_desk/internal/domain"
)

// PreviewScheme marks handles that only exist in this process.
const PreviewScheme = "blob:"

// Previews issues and revokes local preview handles for pending images.
type Previews interface {
	Create(f domain.LocalFile) string
	Revoke(handle string)
}

// PreviewRegistry keeps pending image bytes addressable by a blob: handle
// until the handle is revoked. Safe for concurrent use.
type PreviewRegistry struct {
	mu    sync.Mutex
	files map[string]domain.LocalFile
}

func NewPreviewRegistry() *PreviewRegistry {
	return &PreviewRegistry{files: map[string]domain.LocalFile{}}
}

func (r *PreviewRegistry) Create(f domain.LocalFile) string {
	h := PreviewScheme + uuid.NewString()
	r.mu.Lock()
	r.files[h] = f
	r.mu.Unlock()
	return h
}

func (r *PreviewRegistry) Revoke(handle string) {
	r.mu.Lock()
	delete(r.files, handle)
	r.mu.Unlock()
}

func (r *PreviewRegistry) Open(handle string) (domain.LocalFile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[handle]
	return f, ok
}

// Live reports how many handles are still open.
func (r *PreviewRegistry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}
