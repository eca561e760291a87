package infra_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	maindomain "github.com/boddenberg/giant-coach-panel-bfa/internal/domain"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/infra/resilience"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/domain"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/infra"

	"go.uber.org/zap"
)

func newChatKitClient(t *testing.T, url string, maxRetries int) *infra.ChatKitClient {
	t.Helper()
	return infra.NewChatKitClient(
		&http.Client{Timeout: 5 * time.Second},
		infra.ChatKitConfig{APIURL: url, DomainKey: "domain_pk_test"},
		resilience.NewCircuitBreaker(t.Name(), zap.NewNop(), resilience.WithSuccessFilter(infra.ChatKitBreakerSuccess)),
		resilience.Config{MaxRetries: maxRetries, InitialBackoff: time.Millisecond, MaxConcurrency: 4},
	)
}

func TestChatKitClient_SendCreatesThread(t *testing.T) {
	var got domain.ChatKitRequest
	var domainKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		domainKey = r.Header.Get("X-ChatKit-Domain-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(domain.ChatKitResponse{ThreadID: "thr_new", ItemID: "msg_1"})
	}))
	defer server.Close()

	client := newChatKitClient(t, server.URL, 0)

	threadID, err := client.SendUserMessage(context.Background(), "", "Hello coach")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if threadID != "thr_new" {
		t.Errorf("expected thr_new, got %q", threadID)
	}
	if domainKey != "domain_pk_test" {
		t.Errorf("expected domain key header, got %q", domainKey)
	}
	if got.Type != domain.ChatKitCreateThread {
		t.Errorf("expected %s, got %s", domain.ChatKitCreateThread, got.Type)
	}
	if len(got.Params.Input.Content) != 1 || got.Params.Input.Content[0].Text != "Hello coach" {
		t.Errorf("unexpected content: %+v", got.Params.Input.Content)
	}
}

func TestChatKitClient_SendOnExistingThread(t *testing.T) {
	var got domain.ChatKitRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		// Corpo vazio: confirmação sem thread id.
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newChatKitClient(t, server.URL, 0)

	threadID, err := client.SendUserMessage(context.Background(), "thr_1", "Thanks")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if threadID != "thr_1" {
		t.Errorf("expected existing thread to be kept, got %q", threadID)
	}
	if got.Type != domain.ChatKitAddUserMessage || got.Params.ThreadID != "thr_1" {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestChatKitClient_ErrorMessageFromBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "Thread not found", "code": "not_found"}}`))
	}))
	defer server.Close()

	client := newChatKitClient(t, server.URL, 0)

	_, err := client.SendUserMessage(context.Background(), "thr_x", "hi")
	var tErr *infra.TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if tErr.Message != "Thread not found" || tErr.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected transport error: %+v", tErr)
	}

	var ext *maindomain.ErrExternalService
	if !errors.As(err, &ext) || ext.Service != "chatkit" {
		t.Errorf("expected ErrExternalService for chatkit, got %v", err)
	}
}

func TestChatKitClient_ErrorWithoutMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`<html>bad request</html>`))
	}))
	defer server.Close()

	client := newChatKitClient(t, server.URL, 0)

	_, err := client.SendUserMessage(context.Background(), "", "hi")
	var tErr *infra.TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if tErr.Message != "" {
		t.Errorf("expected empty message, got %q", tErr.Message)
	}
}

func TestChatKitClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(domain.ChatKitResponse{ThreadID: "thr_ok"})
	}))
	defer server.Close()

	client := newChatKitClient(t, server.URL, 2)

	threadID, err := client.SendUserMessage(context.Background(), "", "hi")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if threadID != "thr_ok" {
		t.Errorf("expected thr_ok, got %q", threadID)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestChatKitClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := newChatKitClient(t, server.URL, 3)

	if _, err := client.SendUserMessage(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestChatKitClient_CircuitOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newChatKitClient(t, server.URL, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		client.SendUserMessage(ctx, "", "hi")
	}

	_, err := client.SendUserMessage(ctx, "", "hi")
	var circuitOpen *maindomain.ErrCircuitOpen
	if !errors.As(err, &circuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestChatKitClient_ClientErrorsDoNotOpenCircuit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 10 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": {"message": "Message too long"}}`))
			return
		}
		json.NewEncoder(w).Encode(domain.ChatKitResponse{ThreadID: "thr_ok"})
	}))
	defer server.Close()

	client := newChatKitClient(t, server.URL, 0)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := client.SendUserMessage(ctx, "", "way too long")
		var tErr *infra.TransportError
		if !errors.As(err, &tErr) {
			t.Fatalf("call %d: expected TransportError, got %v", i, err)
		}
	}

	// Outra sessão continua enviando normalmente.
	threadID, err := client.SendUserMessage(ctx, "", "hi")
	if err != nil {
		t.Fatalf("expected breaker to stay closed, got %v", err)
	}
	if threadID != "thr_ok" {
		t.Errorf("expected thr_ok, got %q", threadID)
	}
}

func TestChatKitClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := infra.NewChatKitClient(
		&http.Client{Timeout: 50 * time.Millisecond},
		infra.ChatKitConfig{APIURL: server.URL, DomainKey: "domain_pk_test"},
		resilience.NewCircuitBreaker(t.Name(), zap.NewNop(), resilience.WithSuccessFilter(infra.ChatKitBreakerSuccess)),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxConcurrency: 1},
	)

	_, err := client.SendUserMessage(context.Background(), "", "hi")
	var timeout *maindomain.ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestChatKitBreakerSuccess(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad request", &infra.TransportError{StatusCode: http.StatusBadRequest}, true},
		{"unprocessable", &infra.TransportError{StatusCode: http.StatusUnprocessableEntity}, true},
		{"rate limited", &infra.TransportError{StatusCode: http.StatusTooManyRequests}, false},
		{"server error", &infra.TransportError{StatusCode: http.StatusInternalServerError}, false},
		{"network", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := infra.ChatKitBreakerSuccess(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
