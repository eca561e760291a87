// Package handler — panel_handler.go implementa as rotas do painel do
// Giant Coach em /v1/panel.
//
// ============================================================
// ROTAS
// ============================================================
//
//	GET    /v1/panel/config                           → start screen + selects
//	POST   /v1/panel/sessions                         → abre sessão, devolve token
//	GET    /v1/panel/sessions/{sessionId}             → estado atual
//	DELETE /v1/panel/sessions/{sessionId}             → encerra a sessão
//	PUT    /v1/panel/sessions/{sessionId}/appointment → edita data/horário
//	POST   /v1/panel/sessions/{sessionId}/appointment → submit do agendamento
//	PUT    /v1/panel/sessions/{sessionId}/journey     → edita jornada/pergunta
//	POST   /v1/panel/sessions/{sessionId}/journey     → submit da pergunta
//	POST   /v1/panel/sessions/{sessionId}/messages    → texto livre
//	POST   /v1/panel/sessions/{sessionId}/widget-errors → erro do widget
//	DELETE /v1/panel/sessions/{sessionId}/error       → dismiss
//
// As rotas de sessão exigem Authorization: Bearer <token da sessão>.
// Os handlers são finos: decodificam o body e delegam pro PanelService.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	maindomain "github.com/boddenberg/giant-coach-panel-bfa/internal/domain"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/domain"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// tracer é o tracer OpenTelemetry para o módulo panel/handler.
var tracer = otel.Tracer("panel/handler")

// CreateSessionResponse é a resposta do POST /v1/panel/sessions.
type CreateSessionResponse struct {
	Token   string             `json:"token"`
	Session *domain.PanelState `json:"session"`
}

// MessageRequest é o body do POST .../messages.
type MessageRequest struct {
	Text string `json:"text"`
}

// WidgetErrorRequest é o body do POST .../widget-errors.
type WidgetErrorRequest struct {
	Message string `json:"message"`
}

// Routes registra as rotas do painel no router r (já dentro de /v1).
func Routes(r chi.Router, panelSvc *service.PanelService, tokens *service.SessionTokens, logger *zap.Logger) {
	r.Get("/panel/config", configHandler(panelSvc))
	r.Post("/panel/sessions", createSessionHandler(panelSvc, tokens, logger))

	r.Route("/panel/sessions/{sessionId}", func(r chi.Router) {
		r.Use(SessionAuthMiddleware(tokens, logger))

		r.Get("/", getSessionHandler(panelSvc, logger))
		r.Delete("/", closeSessionHandler(panelSvc, logger))
		r.Put("/appointment", updateAppointmentHandler(panelSvc, logger))
		r.Post("/appointment", submitAppointmentHandler(panelSvc, logger))
		r.Put("/journey", updateJourneyHandler(panelSvc, logger))
		r.Post("/journey", submitJourneyHandler(panelSvc, logger))
		r.Post("/messages", sendMessageHandler(panelSvc, logger))
		r.Post("/widget-errors", widgetErrorHandler(panelSvc, logger))
		r.Delete("/error", dismissErrorHandler(panelSvc, logger))
	})
}

// ============================================================
// Sessão
// ============================================================

func configHandler(panelSvc *service.PanelService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, panelSvc.Config())
	}
}

func createSessionHandler(panelSvc *service.PanelService, tokens *service.SessionTokens, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/panel/sessions")
		defer span.End()

		state, err := panelSvc.CreateSession(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("panel.session_id", state.ID))

		token, err := tokens.Sign(state.ID)
		if err != nil {
			logger.Error("sign session token", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusCreated, CreateSessionResponse{Token: token, Session: state})
	}
}

func getSessionHandler(panelSvc *service.PanelService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := panelSvc.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func closeSessionHandler(panelSvc *service.PanelService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := panelSvc.CloseSession(r.Context(), chi.URLParam(r, "sessionId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Formulários
// ============================================================

func updateAppointmentHandler(panelSvc *service.PanelService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.AppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, `invalid request body: expected {"date": "YYYY-MM-DD", "time": "HH:MM"}`)
			return
		}

		state, err := panelSvc.UpdateAppointment(r.Context(), chi.URLParam(r, "sessionId"), req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func updateJourneyHandler(panelSvc *service.PanelService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.JourneyQuestion
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, `invalid request body: expected {"journey": "...", "question": "..."}`)
			return
		}

		state, err := panelSvc.UpdateJourney(r.Context(), chi.URLParam(r, "sessionId"), req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

// ============================================================
// Submits
// ============================================================

func submitAppointmentHandler(panelSvc *service.PanelService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := panelSvc.SubmitAppointment(r.Context(), chi.URLParam(r, "sessionId"))
		writeSubmitResult(w, result, err, logger)
	}
}

func submitJourneyHandler(panelSvc *service.PanelService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := panelSvc.SubmitJourneyQuestion(r.Context(), chi.URLParam(r, "sessionId"))
		writeSubmitResult(w, result, err, logger)
	}
}

func sendMessageHandler(panelSvc *service.PanelService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MessageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, `invalid request body: expected {"text": "your message"}`)
			return
		}

		result, err := panelSvc.SendMessage(r.Context(), chi.URLParam(r, "sessionId"), req.Text)
		writeSubmitResult(w, result, err, logger)
	}
}

// ============================================================
// ErrorState
// ============================================================

func widgetErrorHandler(panelSvc *service.PanelService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WidgetErrorRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, `invalid request body: expected {"message": "..."}`)
			return
		}

		if err := panelSvc.ReportWidgetError(r.Context(), chi.URLParam(r, "sessionId"), req.Message); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

func dismissErrorHandler(panelSvc *service.PanelService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := panelSvc.DismissError(r.Context(), chi.URLParam(r, "sessionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

// ============================================================
// Helpers
// ============================================================

// decodeJSON decodifica o body em v. Body vazio é aceito como objeto vazio.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeSubmitResult responde um envio. Erros de validação e de transporte
// ainda carregam o estado da sessão, com o ErrorState preenchido.
func writeSubmitResult(w http.ResponseWriter, result *service.SubmitResult, err error, logger *zap.Logger) {
	if err == nil {
		writeJSON(w, http.StatusOK, result)
		return
	}
	if result == nil || result.State == nil {
		handleServiceError(w, err, logger)
		return
	}

	var validation *maindomain.ErrValidation
	var circuitOpen *maindomain.ErrCircuitOpen
	var timeout *maindomain.ErrTimeout
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, result)
	case errors.As(err, &circuitOpen):
		writeJSON(w, http.StatusServiceUnavailable, result)
	case errors.As(err, &timeout):
		writeJSON(w, http.StatusGatewayTimeout, result)
	default:
		writeJSON(w, http.StatusBadGateway, result)
	}
}

// handleServiceError mapeia erros de domínio para HTTP status codes.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *maindomain.ErrNotFound
	var validation *maindomain.ErrValidation
	var unauthorized *maindomain.ErrUnauthorized
	var circuitOpen *maindomain.ErrCircuitOpen
	var timeout *maindomain.ErrTimeout
	var external *maindomain.ErrExternalService

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("field", validation.Field), zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("operation timed out", zap.String("operation", timeout.Operation))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(external.Err))
		writeError(w, http.StatusBadGateway, "external service unavailable: "+external.Service)
	default:
		logger.Error("unexpected error in panel handler", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
