package service

import (
	"fmt"
	"time"

	maindomain "github.com/boddenberg/giant-coach-panel-bfa/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// ============================================================
// SessionTokens — JWT que prende o browser à sua sessão
// ============================================================

// SessionClaims são as claims do token de sessão. Subject é o id da sessão.
type SessionClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// SessionTokens assina e valida tokens de sessão do painel (HS256).
//
// A sessão expira por inatividade, o token por tempo fixo. Quem usa o
// painel recebe um token novo a cada request autenticado (ver
// SessionAuthMiddleware), então o token acompanha a sessão.
type SessionTokens struct {
	secret []byte
	ttl    time.Duration

	now func() time.Time
}

// NewSessionTokens cria o emissor. ttl deve acompanhar o TTL da sessão.
func NewSessionTokens(secret string, ttl time.Duration) *SessionTokens {
	return &SessionTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign emite um token para sessionID.
func (t *SessionTokens) Sign(sessionID string) (string, error) {
	now := t.now()
	claims := SessionClaims{
		Type: "panel_session",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			Issuer:    "giant-coach-panel",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate devolve o id da sessão contido no token.
func (t *SessionTokens) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return "", &maindomain.ErrUnauthorized{Message: "invalid or expired session token"}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", &maindomain.ErrUnauthorized{Message: "invalid session token"}
	}
	if claims.Type != "panel_session" {
		return "", &maindomain.ErrUnauthorized{Message: "invalid session token type"}
	}
	return claims.Subject, nil
}
