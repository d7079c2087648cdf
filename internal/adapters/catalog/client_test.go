package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"travel_desk/internal/adapters/catalog"
	"travel_desk/internal/domain"
)

func TestClient_Get_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tours/7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			w.WriteHeader(500)
		default:
			w.WriteHeader(200)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "7", "title": "Nile Cruise"})
		}
	}))
	defer ts.Close()

	cl, err := catalog.New(ts.URL, "test-key", 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got, err := cl.Get(ctx, domain.EntityTour, "7")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got["title"] != "Nile Cruise" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestClient_Get_404(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	cl, _ := catalog.New(ts.URL, "", 100)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := cl.Get(ctx, domain.EntityHotel, "1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_Create_SendsPayloadAndReadsNumericID(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/packages" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "k" {
			t.Errorf("missing api key")
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":42}}`))
	}))
	defer ts.Close()

	cl, _ := catalog.New(ts.URL, "k", 100)
	id, err := cl.Create(context.Background(), domain.EntityPackage, domain.Payload{"price": 150000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "42" {
		t.Fatalf("id = %q", id)
	}
	if body["price"] != float64(150000) {
		t.Fatalf("payload not forwarded: %+v", body)
	}
}

func TestClient_Create_DoesNotRetryServerError(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	cl, _ := catalog.New(ts.URL, "", 100)
	if _, err := cl.Create(context.Background(), domain.EntityTour, domain.Payload{}); err == nil {
		t.Fatalf("expected error")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("POST retried %d times", n)
	}
}

func TestClient_Update_Rejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"price must be positive"}`))
	}))
	defer ts.Close()

	cl, _ := catalog.New(ts.URL, "", 100)
	_, err := cl.Update(context.Background(), domain.EntityHotel, "9", domain.Payload{})
	var rej *catalog.RejectedError
	if !errors.As(err, &rej) || rej.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected RejectedError 422, got %v", err)
	}
}

func TestClient_Get_EscapesID(t *testing.T) {
	paths := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case paths <- r.URL.EscapedPath():
		default:
		}
		w.WriteHeader(200)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "a/b?c"})
	}))
	defer ts.Close()

	cl, _ := catalog.New(ts.URL, "", 100)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := cl.Get(ctx, domain.EntityTour, "a/b?c"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := <-paths; got != "/tours/a%2Fb%3Fc" {
		t.Fatalf("path = %q", got)
	}
}
