package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionTokenHeader carrega o token renovado em toda resposta autenticada.
// O frontend deve trocar o token guardado pelo valor deste header.
const SessionTokenHeader = "X-Session-Token"

// SessionAuthMiddleware valida o Bearer token da sessão, confere que ele
// pertence ao {sessionId} da URL e devolve um token renovado no header
// SessionTokenHeader.
func SessionAuthMiddleware(tokens *service.SessionTokens, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("panel auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing session token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			sessionID, err := tokens.Validate(parts[1])
			if err != nil {
				logger.Warn("panel auth: invalid token",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			if sessionID != chi.URLParam(r, "sessionId") {
				logger.Warn("panel auth: token does not match session",
					zap.String("path", r.URL.Path),
				)
				writeError(w, http.StatusForbidden, "session token does not match session")
				return
			}

			if fresh, err := tokens.Sign(sessionID); err == nil {
				w.Header().Set(SessionTokenHeader, fresh)
			} else {
				logger.Error("panel auth: refresh token", zap.Error(err))
			}

			next.ServeHTTP(w, r)
		})
	}
}
