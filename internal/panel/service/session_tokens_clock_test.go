package service

import (
	"testing"
	"time"
)

func TestSessionTokens_ResignedTokenOutlivesFirst(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	tokens := NewSessionTokens("test-secret", 10*time.Minute)
	tokens.now = func() time.Time { return now }

	first, err := tokens.Sign("sess-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Atividade aos 8 minutos renova o token.
	now = now.Add(8 * time.Minute)
	if _, err := tokens.Validate(first); err != nil {
		t.Fatalf("expected first token valid at 8m, got %v", err)
	}
	refreshed, err := tokens.Sign("sess-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	now = now.Add(4 * time.Minute)
	if _, err := tokens.Validate(first); err == nil {
		t.Error("expected first token expired at 12m")
	}
	id, err := tokens.Validate(refreshed)
	if err != nil {
		t.Fatalf("expected refreshed token valid at 12m, got %v", err)
	}
	if id != "sess-1" {
		t.Errorf("expected sess-1, got %q", id)
	}
}
