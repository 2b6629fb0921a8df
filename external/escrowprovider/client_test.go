package escrowprovider

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/tradeyard/dealops/internal/platform/logging"
	"github.com/tradeyard/dealops/internal/platform/resilience"
	"github.com/tradeyard/dealops/internal/usecase"
)

func TestGetStatement_DecodesStatement(t *testing.T) {
	t.Parallel()

	var gotAuth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got=%s", r.Method)
		}
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"statement_id":"stmt-900","balance":420.00,"generated_at":"2026-08-28T10:00:00Z"}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL: server.URL,
		Token:   "test-token",
		Logger:  logging.NewNop(),
	})

	statement, err := client.GetStatement(t.Context(), "prov-ref-4821")
	if err != nil {
		t.Fatalf("expected statement, got error: %v", err)
	}
	if statement.StatementID != "stmt-900" {
		t.Fatalf("expected statement_id=stmt-900, got=%s", statement.StatementID)
	}
	if statement.Balance != 420.00 {
		t.Fatalf("expected balance=420.00, got=%v", statement.Balance)
	}
	want := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	if !statement.GeneratedAt.Equal(want) {
		t.Fatalf("expected generated_at=%v, got=%v", want, statement.GeneratedAt)
	}
	if auth, _ := gotAuth.Load().(string); auth != "Bearer test-token" {
		t.Fatalf("expected bearer token header, got=%q", auth)
	}
}

func TestGetStatement_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"statement_id":"stmt-901","balance":100.50,"generated_at":"2026-08-28T10:00:00Z"}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:    server.URL,
		MaxRetries: 2,
		Logger:     logging.NewNop(),
	})

	statement, err := client.GetStatement(t.Context(), "prov-ref-4821")
	if err != nil {
		t.Fatalf("expected retry to recover, got error: %v", err)
	}
	if statement.StatementID != "stmt-901" {
		t.Fatalf("expected statement_id=stmt-901, got=%s", statement.StatementID)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 requests, got=%d", calls.Load())
	}
}

func TestGetStatement_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"unknown reference"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:    server.URL,
		MaxRetries: 3,
		Logger:     logging.NewNop(),
	})

	if _, err := client.GetStatement(t.Context(), "prov-ref-bogus"); err == nil {
		t.Fatal("expected client error to surface")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single request, got=%d", calls.Load())
	}
}

func TestGetStatement_OpenCircuitShortCircuits(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL: server.URL,
		Logger:  logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	})

	if _, err := client.GetStatement(t.Context(), "prov-ref-4821"); err == nil {
		t.Fatal("expected first request to fail")
	}
	requestsBefore := calls.Load()

	_, err := client.GetStatement(t.Context(), "prov-ref-4821")
	if !errors.Is(err, usecase.ErrDependencyUnavailable) {
		t.Fatalf("expected dependency unavailable while circuit is open, got: %v", err)
	}
	if calls.Load() != requestsBefore {
		t.Fatalf("expected open circuit to skip the network, got %d extra calls", calls.Load()-requestsBefore)
	}
}

func TestGetStatement_RejectsEmptyReference(t *testing.T) {
	t.Parallel()

	client := NewClient(ClientConfig{Logger: logging.NewNop()})
	if _, err := client.GetStatement(t.Context(), "  "); err == nil {
		t.Fatal("expected empty reference to be rejected")
	}
}
