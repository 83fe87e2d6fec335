package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vatbq/lia/internal/infrastructure/cache"
)

func secretServer(t *testing.T, calls *int32, token string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Path != "/v1/realtime/client_secrets" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-long-lived" {
			t.Errorf("unexpected authorization: %q", r.Header.Get("Authorization"))
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		session := body["session"].(map[string]interface{})
		if session["type"] != "transcription" {
			t.Errorf("session type = %v", session["type"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"value": token},
		})
	}))
}

func TestBrokerMintsAndCaches(t *testing.T) {
	var calls int32
	srv := secretServer(t, &calls, "ek_test_123")
	defer srv.Close()

	broker := NewBroker("sk-long-lived", srv.URL, 10*time.Minute, cache.NewMemoryStore(), nil)

	token, err := broker.EphemeralToken(context.Background())
	if err != nil {
		t.Fatalf("EphemeralToken failed: %v", err)
	}
	if token != "ek_test_123" {
		t.Fatalf("unexpected token: %q", token)
	}

	// Second request comes from cache.
	if _, err := broker.EphemeralToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 mint call, got %d", got)
	}
}

func TestBrokerInvalidateForcesMint(t *testing.T) {
	var calls int32
	srv := secretServer(t, &calls, "ek_test_456")
	defer srv.Close()

	broker := NewBroker("sk-long-lived", srv.URL, 10*time.Minute, cache.NewMemoryStore(), nil)
	if _, err := broker.EphemeralToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	broker.Invalidate(context.Background())
	if _, err := broker.EphemeralToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 mint calls, got %d", got)
	}
}

func TestBrokerRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"value": "ek_after_retry"},
		})
	}))
	defer srv.Close()

	broker := NewBroker("sk-long-lived", srv.URL, 10*time.Minute, cache.NewMemoryStore(), nil)
	token, err := broker.EphemeralToken(context.Background())
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if token != "ek_after_retry" {
		t.Fatalf("unexpected token: %q", token)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestBrokerDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	broker := NewBroker("bad-key", srv.URL, 10*time.Minute, cache.NewMemoryStore(), nil)
	if _, err := broker.EphemeralToken(context.Background()); err == nil {
		t.Fatal("expected error for 401")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 call without retries, got %d", got)
	}
}
