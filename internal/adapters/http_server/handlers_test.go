package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	server "travel_desk/internal/adapters/http_server"
	redisad "travel_desk/internal/adapters/redis"
	"travel_desk/internal/app"
	"travel_desk/internal/domain"
)

// ---- fakes ----

type memCatalog struct {
	mu   sync.Mutex
	next int
	data map[string]domain.Payload
	fail error
}

func (c *memCatalog) Create(ctx context.Context, t domain.EntityType, p domain.Payload) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return "", c.fail
	}
	c.next++
	id := strconv.Itoa(c.next)
	c.data[id] = p
	return id, nil
}

func (c *memCatalog) Update(ctx context.Context, t domain.EntityType, id string, p domain.Payload) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[id]; !ok {
		return "", domain.ErrNotFound
	}
	c.data[id] = p
	return id, nil
}

func (c *memCatalog) Get(ctx context.Context, t domain.EntityType, id string) (domain.Payload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

type okUploader struct{}

func (okUploader) UploadImage(ctx context.Context, f domain.LocalFile) (string, error) {
	if f.Name == "broken.png" {
		return "", errors.New("storage unavailable")
	}
	return "/uploads/" + f.Name, nil
}

type testEnv struct {
	ts      *httptest.Server
	catalog *memCatalog
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	store := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = store.Close() })

	cat := &memCatalog{data: map[string]domain.Payload{}}
	q := app.NewQueryService(cat, store, time.Minute)
	p := app.NewPipeline(okUploader{}, cat, q, nil, 2)
	previews := app.NewPreviewRegistry()
	drafts := app.NewDrafts(store, q, p, previews, app.DraftConfig{UploadsRoot: "uploads"})

	srv := server.New(5 * time.Second)
	srv.MountHandlers(&server.Handlers{Q: q, Drafts: drafts, Previews: previews, MaxUpload: 1 << 20})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, catalog: cat}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, e.ts.URL+path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(server.SessionHeader, "desk-1")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func (e *testEnv) upload(t *testing.T, path, name, role string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", name)
	_, _ = fw.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	if role != "" {
		_ = mw.WriteField("role", role)
	}
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, e.ts.URL+path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(server.SessionHeader, "desk-1")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decode(t *testing.T, res *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func wantStatus(t *testing.T, res *http.Response, code int) {
	t.Helper()
	if res.StatusCode != code {
		var p map[string]any
		_ = json.NewDecoder(res.Body).Decode(&p)
		t.Fatalf("%s %s: status %d, want %d (%v)", res.Request.Method, res.Request.URL.Path, res.StatusCode, code, p)
	}
}

// ---- tests ----

func TestQuoteEndpoint(t *testing.T) {
	env := newEnv(t)
	res := env.do(t, http.MethodPost, "/v1/quotes", map[string]any{
		"offering": map[string]any{
			"currency":             "USD",
			"basePrice":            "1000.00",
			"discountedPrice":      900,
			"singleRoomSupplement": "200",
		},
		"selection": map[string]any{"adults": 2, "children": 1, "roomDistribution": "single"},
	})
	wantStatus(t, res, http.StatusOK)

	var body struct {
		PayingHeads int `json:"payingHeads"`
		Total       struct {
			Amount  int64  `json:"amount"`
			Display string `json:"display"`
		} `json:"total"`
		Discount struct {
			Display string `json:"display"`
		} `json:"discount"`
	}
	decode(t, res, &body)
	if body.PayingHeads != 3 || body.Total.Amount != 290000 || body.Total.Display != "USD 2,900.00" {
		t.Fatalf("unexpected quote: %+v", body)
	}
	if body.Discount.Display != "USD 300.00" {
		t.Fatalf("discount = %q", body.Discount.Display)
	}
}

func TestQuoteEndpoint_InvalidSelection(t *testing.T) {
	env := newEnv(t)
	res := env.do(t, http.MethodPost, "/v1/quotes", map[string]any{
		"offering":  map[string]any{"currency": "USD", "basePrice": 100},
		"selection": map[string]any{"adults": -1},
	})
	wantStatus(t, res, http.StatusBadRequest)
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/problem+json") {
		t.Fatalf("content-type = %q", ct)
	}

	res = env.do(t, http.MethodPost, "/v1/quotes", map[string]any{
		"offering":  map[string]any{"currency": "USD", "basePrice": "10.001"},
		"selection": map[string]any{"adults": 1},
	})
	wantStatus(t, res, http.StatusBadRequest)
}

func TestDraftFlow_CreateAndSubmit(t *testing.T) {
	env := newEnv(t)

	wantStatus(t, env.do(t, http.MethodPost, "/v1/drafts/tour", nil), http.StatusCreated)
	// opening again returns the live draft
	wantStatus(t, env.do(t, http.MethodPost, "/v1/drafts/tour", nil), http.StatusOK)

	for path, v := range map[string]any{
		"title":         "Cappadocia Balloons",
		"destinationId": "dest-1",
		"currency":      "USD",
		"price":         2700,
		"startDate":     "2025-05-01",
		"endDate":       "2025-05-07",
	} {
		wantStatus(t, env.do(t, http.MethodPut, "/v1/drafts/tour/fields", map[string]any{"path": path, "value": v}), http.StatusOK)
	}

	res := env.do(t, http.MethodPost, "/v1/drafts/tour/children", map[string]any{
		"path": "landmarks", "record": map[string]any{"name": "Goreme"},
	})
	wantStatus(t, res, http.StatusCreated)

	res = env.upload(t, "/v1/drafts/tour/images", "main.png", "main")
	wantStatus(t, res, http.StatusCreated)
	var att struct {
		ID      string `json:"id"`
		Preview string `json:"preview"`
	}
	decode(t, res, &att)
	if att.ID == "" || !strings.HasPrefix(att.Preview, app.PreviewScheme) {
		t.Fatalf("attach = %+v", att)
	}
	pv := env.do(t, http.MethodGet, "/v1/previews/"+strings.TrimPrefix(att.Preview, app.PreviewScheme), nil)
	wantStatus(t, pv, http.StatusOK)

	wantStatus(t, env.upload(t, "/v1/drafts/tour/images", "gallery.png", ""), http.StatusCreated)

	res = env.do(t, http.MethodPost, "/v1/drafts/tour/validate", nil)
	wantStatus(t, res, http.StatusOK)
	var val struct {
		OK     bool                `json:"ok"`
		Errors []domain.FieldError `json:"errors"`
	}
	decode(t, res, &val)
	if !val.OK {
		t.Fatalf("validate errors: %+v", val.Errors)
	}

	res = env.do(t, http.MethodPost, "/v1/drafts/tour/submit", nil)
	wantStatus(t, res, http.StatusCreated)
	var sub app.SubmitResult
	decode(t, res, &sub)
	if sub.State != app.StateDone || sub.ID == "" {
		t.Fatalf("submit = %+v", sub)
	}

	saved := env.catalog.data[sub.ID]
	if saved["price"] != int64(270000) || saved["imageUrl"] != "/uploads/main.png" {
		t.Fatalf("saved payload = %+v", saved)
	}

	// the session is gone after success; the entity is readable
	wantStatus(t, env.do(t, http.MethodGet, "/v1/drafts/tour", nil), http.StatusNotFound)
	wantStatus(t, env.do(t, http.MethodGet, "/v1/catalog/tour/"+sub.ID, nil), http.StatusOK)
	// preview handles die with the draft
	res = env.do(t, http.MethodGet, "/v1/previews/"+strings.TrimPrefix(att.Preview, app.PreviewScheme), nil)
	wantStatus(t, res, http.StatusNotFound)
}

func TestDraftErrors(t *testing.T) {
	env := newEnv(t)

	wantStatus(t, env.do(t, http.MethodPost, "/v1/drafts/cruise", nil), http.StatusBadRequest)
	wantStatus(t, env.do(t, http.MethodGet, "/v1/drafts/hotel", nil), http.StatusNotFound)

	wantStatus(t, env.do(t, http.MethodPost, "/v1/drafts/hotel", nil), http.StatusCreated)
	wantStatus(t, env.do(t, http.MethodPut, "/v1/drafts/hotel/fields", map[string]any{"path": "rooms[x]", "value": 1}), http.StatusBadRequest)
	wantStatus(t, env.do(t, http.MethodDelete, "/v1/drafts/hotel/children?path=roomTypes&index=3", nil), http.StatusBadRequest)
	wantStatus(t, env.do(t, http.MethodPut, "/v1/drafts/hotel/images/nope/main", nil), http.StatusNotFound)

	res := env.do(t, http.MethodPost, "/v1/drafts/hotel/submit", nil)
	wantStatus(t, res, http.StatusUnprocessableEntity)
	var p struct {
		Status int                 `json:"status"`
		Errors []domain.FieldError `json:"errors"`
	}
	decode(t, res, &p)
	if p.Status != http.StatusUnprocessableEntity || len(p.Errors) == 0 {
		t.Fatalf("problem = %+v", p)
	}

	wantStatus(t, env.do(t, http.MethodDelete, "/v1/drafts/hotel", nil), http.StatusNoContent)
	wantStatus(t, env.do(t, http.MethodGet, "/v1/drafts/hotel", nil), http.StatusNotFound)
}

func TestSubmit_MainUploadFailureIs502(t *testing.T) {
	env := newEnv(t)
	wantStatus(t, env.do(t, http.MethodPost, "/v1/drafts/package", nil), http.StatusCreated)
	for path, v := range map[string]any{
		"title":         "Aegean week",
		"destinationId": "dest-2",
		"currency":      "EUR",
		"price":         "1499.90",
		"startDate":     "2025-06-01",
		"endDate":       "2025-06-07",
	} {
		wantStatus(t, env.do(t, http.MethodPut, "/v1/drafts/package/fields", map[string]any{"path": path, "value": v}), http.StatusOK)
	}
	wantStatus(t, env.upload(t, "/v1/drafts/package/images", "broken.png", "main"), http.StatusCreated)

	wantStatus(t, env.do(t, http.MethodPost, "/v1/drafts/package/submit", nil), http.StatusBadGateway)

	// the draft is still there and still pending
	res := env.do(t, http.MethodGet, "/v1/drafts/package", nil)
	wantStatus(t, res, http.StatusOK)
	var v app.DraftView
	decode(t, res, &v)
	if v.State != app.StateFailed || len(v.Images) != 1 || v.Images[0].State != domain.AssetPending {
		t.Fatalf("draft = %+v", v)
	}
}
