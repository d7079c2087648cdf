package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"travel_desk/internal/app"
	"travel_desk/internal/domain"
)

// ---- fakes ----

type memKV struct {
	mu  sync.Mutex
	m   map[string]string
	err error
}

func newMemKV() *memKV { return &memKV{m: map[string]string{}} }

func (k *memKV) GetString(ctx context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.err != nil {
		return "", false, k.err
	}
	v, ok := k.m[key]
	return v, ok, nil
}

func (k *memKV) SetString(ctx context.Context, key, val string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.err != nil {
		return k.err
	}
	k.m[key] = val
	return nil
}

func (k *memKV) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.m, key)
	return nil
}

func (k *memKV) Scan(ctx context.Context, pattern string, fn func(key string) error) error {
	prefix := strings.TrimSuffix(pattern, "*")
	k.mu.Lock()
	var keys []string
	for key := range k.m {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	k.mu.Unlock()
	for _, key := range keys {
		if err := fn(key); err != nil {
			return err
		}
	}
	return nil
}

func (k *memKV) raw(key string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.m[key]
	return v, ok
}

type fakeCatalog struct {
	mu        sync.Mutex
	entities  map[string]domain.Payload
	next      int
	createErr error
	gets      int
	creates   int
	updates   int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{entities: map[string]domain.Payload{}, next: 100}
}

func (f *fakeCatalog) Create(ctx context.Context, t domain.EntityType, p domain.Payload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.creates++
	f.next++
	id := strconv.Itoa(f.next)
	f.entities[id] = p
	return id, nil
}

func (f *fakeCatalog) Update(ctx context.Context, t domain.EntityType, id string, p domain.Payload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entities[id]; !ok {
		return "", domain.ErrNotFound
	}
	f.updates++
	f.entities[id] = p
	return id, nil
}

func (f *fakeCatalog) Get(ctx context.Context, t domain.EntityType, id string) (domain.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	p, ok := f.entities[id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", t, id, domain.ErrNotFound)
	}
	cp := domain.Payload{}
	for k, v := range p {
		cp[k] = v
	}
	return cp, nil
}

func (f *fakeCatalog) entity(id string) domain.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entities[id]
}

// fakeCache stores JSON like the redis adapter does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.store[key] = b
	c.mu.Unlock()
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.store, key)
	c.mu.Unlock()
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}

// fakeUploader answers /uploads/<name>. Names in fail get that error.
// When block is set every call waits for it to close; started gets one
// tick per call. gates hold back single names, and finished receives each
// name as its call returns.
type fakeUploader struct {
	mu       sync.Mutex
	fail     map[string]error
	block    chan struct{}
	started  chan struct{}
	gates    map[string]chan struct{}
	finished chan string
	calls    int
}

func (u *fakeUploader) UploadImage(ctx context.Context, f domain.LocalFile) (string, error) {
	u.mu.Lock()
	u.calls++
	err := u.fail[f.Name]
	block, started := u.block, u.started
	gate, finished := u.gates[f.Name], u.finished
	u.mu.Unlock()

	if finished != nil {
		defer func() { finished <- f.Name }()
	}
	if started != nil {
		started <- struct{}{}
	}
	for _, wait := range []chan struct{}{block, gate} {
		if wait == nil {
			continue
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return "/uploads/" + f.Name, nil
}

func (u *fakeUploader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

type fakeEvents struct {
	mu  sync.Mutex
	got []domain.CatalogSaved
}

func (e *fakeEvents) PublishCatalogSaved(ctx context.Context, ev domain.CatalogSaved) error {
	e.mu.Lock()
	e.got = append(e.got, ev)
	e.mu.Unlock()
	return nil
}

// ---- rig ----

type rig struct {
	kv       *memKV
	catalog  *fakeCatalog
	cache    *fakeCache
	uploader *fakeUploader
	events   *fakeEvents
	previews *app.PreviewRegistry
	drafts   *app.Drafts
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		kv:       newMemKV(),
		catalog:  newFakeCatalog(),
		cache:    newFakeCache(),
		uploader: &fakeUploader{fail: map[string]error{}},
		events:   &fakeEvents{},
		previews: app.NewPreviewRegistry(),
	}
	q := app.NewQueryService(r.catalog, r.cache, time.Minute)
	p := app.NewPipeline(r.uploader, r.catalog, q, r.events, 2)
	// zero debounce: every edit is snapshotted before the call returns
	r.drafts = app.NewDrafts(r.kv, q, p, r.previews, app.DraftConfig{UploadsRoot: "uploads"})
	return r
}

func png(name string) domain.LocalFile {
	return domain.LocalFile{Name: name, ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\n" + name)}
}

func mustSet(t *testing.T, s *app.Session, path string, v any) {
	t.Helper()
	if err := s.Set(context.Background(), path, v); err != nil {
		t.Fatalf("Set(%s): %v", path, err)
	}
}

// fillTour writes the minimum a tour needs to pass validation, minus images.
func fillTour(t *testing.T, s *app.Session) {
	t.Helper()
	mustSet(t, s, "title", "Cappadocia Balloons")
	mustSet(t, s, "destinationId", "dest-1")
	mustSet(t, s, "currency", "USD")
	mustSet(t, s, "price", 2700)
	mustSet(t, s, "startDate", "2025-05-01")
	mustSet(t, s, "endDate", "2025-05-07")
}
