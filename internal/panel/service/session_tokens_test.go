package service_test

import (
	"errors"
	"testing"
	"time"

	maindomain "github.com/boddenberg/giant-coach-panel-bfa/internal/domain"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/service"
)

func TestSessionTokens_RoundTrip(t *testing.T) {
	tokens := service.NewSessionTokens("test-secret", time.Minute)

	token, err := tokens.Sign("sess-123")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	id, err := tokens.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if id != "sess-123" {
		t.Errorf("expected sess-123, got %q", id)
	}
}

func TestSessionTokens_Rejects(t *testing.T) {
	tokens := service.NewSessionTokens("test-secret", time.Minute)

	otherSecret, err := service.NewSessionTokens("other-secret", time.Minute).Sign("sess-123")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	expired, err := service.NewSessionTokens("test-secret", -time.Minute).Sign("sess-123")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", otherSecret},
		{"expired", expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Validate(tt.token)
			var unauthorized *maindomain.ErrUnauthorized
			if !errors.As(err, &unauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}
