// Package service — panel_service.go implementa o PanelService.
//
// ============================================================
// ARQUITETURA — um escritor por sessão
// ============================================================
//
// O PanelService é o dono do estado de cada sessão do painel. Toda escrita
// passa por SessionStore.Update, que serializa os escritores da mesma
// sessão. O envio ao ChatKit acontece FORA do Update: o erro anterior é
// limpo antes da tentativa e o resultado é aplicado num segundo Update.
//
// Fluxo de um submit:
//  1. Update: valida o formulário (Compose*). Falhou → ErrorShown, fim.
//  2. Update: limpa o ErrorState (otimista) e lê o thread id
//  3. ChatTransport.SendUserMessage (sem lock)
//  4. Falhou → Update: ErrorShown com a mensagem do transporte
//  5. Sucesso → Update: limpa os campos submetidos e grava o thread id
//
// Erros do widget chegam pelo ErrorFeed (Run) e usam o mesmo caminho de
// atualização do ErrorState. Vale o último que escreveu.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	maindomain "github.com/boddenberg/giant-coach-panel-bfa/internal/domain"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/infra/observability"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/domain"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// panelTracer é o tracer OpenTelemetry para o módulo de painel.
var panelTracer = otel.Tracer("panel/service")

// dateLayout é o formato do date picker do painel.
const dateLayout = "2006-01-02"

// Fluxos de envio, usados como label de métricas e logs.
const (
	flowAppointment = "appointment"
	flowJourney     = "journey"
	flowMessage     = "message"
)

// SubmitResult é o que um envio devolve: a mensagem composta (vazia se
// nada foi enviado) e o estado da sessão depois do envio. Em caso de erro
// de validação ou de transporte, State continua preenchido para o painel
// mostrar o ErrorState.
type SubmitResult struct {
	Message string             `json:"message,omitempty"`
	State   *domain.PanelState `json:"state"`
}

// PanelService orquestra as sessões do painel.
type PanelService struct {
	transport port.ChatTransport
	store     port.SessionStore
	feed      port.ErrorFeed
	config    domain.PanelConfig
	metrics   *observability.Metrics
	logger    *zap.Logger

	now func() time.Time
}

// NewPanelService cria o PanelService com as dependências injetadas.
func NewPanelService(
	transport port.ChatTransport,
	store port.SessionStore,
	feed port.ErrorFeed,
	config domain.PanelConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PanelService {
	return &PanelService{
		transport: transport,
		store:     store,
		feed:      feed,
		config:    config,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Config devolve a configuração da start screen e dos selects.
func (s *PanelService) Config() domain.PanelConfig {
	return s.config
}

// ============================================================
// Sessões
// ============================================================

// CreateSession abre uma sessão com os formulários vazios e sem erro.
func (s *PanelService) CreateSession(ctx context.Context) (*domain.PanelState, error) {
	ctx, span := panelTracer.Start(ctx, "PanelService.CreateSession")
	defer span.End()

	now := s.now()
	state := &domain.PanelState{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, state); err != nil {
		return nil, err
	}

	s.logger.Info("panel session created", zap.String("session_id", state.ID))
	return state, nil
}

// GetSession devolve o estado atual da sessão.
func (s *PanelService) GetSession(ctx context.Context, id string) (*domain.PanelState, error) {
	ctx, span := panelTracer.Start(ctx, "PanelService.GetSession")
	defer span.End()

	state, err := s.store.Get(ctx, id)
	var notFound *maindomain.ErrNotFound
	switch {
	case errors.As(err, &notFound):
		s.metrics.IncrCacheMiss("session")
	case err == nil:
		s.metrics.IncrCacheHit("session")
	}
	return state, err
}

// CloseSession encerra a sessão antes do TTL (painel fechado).
func (s *PanelService) CloseSession(ctx context.Context, id string) error {
	ctx, span := panelTracer.Start(ctx, "PanelService.CloseSession")
	defer span.End()

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("panel session closed", zap.String("session_id", id))
	return nil
}

// ============================================================
// Formulários — superfície de edição
// ============================================================

// UpdateAppointment grava data e horário do formulário de agendamento.
// Valores vazios limpam o campo; valores fora das opções são rejeitados
// sem alterar nada.
func (s *PanelService) UpdateAppointment(ctx context.Context, id string, req domain.AppointmentRequest) (*domain.PanelState, error) {
	ctx, span := panelTracer.Start(ctx, "PanelService.UpdateAppointment")
	defer span.End()

	if req.Date != "" {
		if _, err := time.Parse(dateLayout, req.Date); err != nil {
			return nil, s.invalidValue("date", "date must be formatted as YYYY-MM-DD")
		}
	}
	if req.Time != "" && !domain.IsTimeSlot(req.Time) {
		return nil, s.invalidValue("time", "time must be one of the offered slots")
	}

	return s.store.Update(ctx, id, func(st *domain.PanelState) error {
		st.Appointment = req
		return nil
	})
}

// UpdateJourney grava a jornada selecionada e o texto da pergunta.
func (s *PanelService) UpdateJourney(ctx context.Context, id string, q domain.JourneyQuestion) (*domain.PanelState, error) {
	ctx, span := panelTracer.Start(ctx, "PanelService.UpdateJourney")
	defer span.End()

	if q.Journey != "" && !domain.IsJourney(q.Journey) {
		return nil, s.invalidValue("journey", "journey must be one of the offered journeys")
	}

	return s.store.Update(ctx, id, func(st *domain.PanelState) error {
		st.Journey = q
		return nil
	})
}

func (s *PanelService) invalidValue(field, msg string) error {
	s.metrics.IncrValidationError(maindomain.ValidationInvalidValue)
	return &maindomain.ErrValidation{
		Kind:    maindomain.ValidationInvalidValue,
		Field:   field,
		Message: msg,
	}
}

// ============================================================
// Submits
// ============================================================

// SubmitAppointment valida o agendamento, envia a mensagem e, se o envio
// deu certo, limpa data e horário.
func (s *PanelService) SubmitAppointment(ctx context.Context, id string) (*SubmitResult, error) {
	ctx, span := panelTracer.Start(ctx, "PanelService.SubmitAppointment")
	defer span.End()
	defer s.observe("submit_appointment", time.Now())

	var (
		msg       string
		submitted domain.AppointmentRequest
	)
	result, err := s.compose(ctx, id, func(st *domain.PanelState) (string, error) {
		submitted = st.Appointment
		m, err := ComposeAppointmentMessage(st.Appointment)
		msg = m
		return m, err
	})
	if err != nil {
		return result, err
	}

	return s.dispatchAndClear(ctx, id, msg, flowAppointment, func(st *domain.PanelState) {
		// Só limpa se o usuário não editou o formulário durante o envio.
		if st.Appointment == submitted {
			st.Appointment = domain.AppointmentRequest{}
		}
	})
}

// SubmitJourneyQuestion valida a pergunta, envia a mensagem e, se o envio
// deu certo, limpa SOMENTE a pergunta. A jornada continua selecionada
// para perguntas de acompanhamento.
func (s *PanelService) SubmitJourneyQuestion(ctx context.Context, id string) (*SubmitResult, error) {
	ctx, span := panelTracer.Start(ctx, "PanelService.SubmitJourneyQuestion")
	defer span.End()
	defer s.observe("submit_journey", time.Now())

	var (
		msg      string
		question string
	)
	result, err := s.compose(ctx, id, func(st *domain.PanelState) (string, error) {
		question = st.Journey.Question
		m, err := ComposeJourneyMessage(st.Journey)
		msg = m
		return m, err
	})
	if err != nil {
		return result, err
	}

	return s.dispatchAndClear(ctx, id, msg, flowJourney, func(st *domain.PanelState) {
		if st.Journey.Question == question {
			st.Journey.Question = ""
		}
	})
}

// SendMessage envia texto livre (ex: prompts da start screen).
// Texto vazio ou só com espaços é ignorado sem erro.
func (s *PanelService) SendMessage(ctx context.Context, id, text string) (*SubmitResult, error) {
	ctx, span := panelTracer.Start(ctx, "PanelService.SendMessage")
	defer span.End()
	defer s.observe("send_message", time.Now())

	return s.dispatchAndClear(ctx, id, text, flowMessage, nil)
}

// compose roda a validação dentro de um Update. Se a validação falha, o
// erro vira o ErrorState da sessão e é devolvido junto com o estado.
func (s *PanelService) compose(ctx context.Context, id string, fn func(*domain.PanelState) (string, error)) (*SubmitResult, error) {
	var composeErr error
	state, err := s.store.Update(ctx, id, func(st *domain.PanelState) error {
		_, composeErr = fn(st)
		if composeErr != nil {
			showError(st, composeErr.Error(), domain.ErrorSourceValidation, s.now())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if composeErr != nil {
		var validation *maindomain.ErrValidation
		if errors.As(composeErr, &validation) {
			s.metrics.IncrValidationError(validation.Kind)
			s.logger.Debug("panel submission rejected",
				zap.String("session_id", id),
				zap.String("kind", string(validation.Kind)),
			)
		}
		return &SubmitResult{State: state}, composeErr
	}
	return nil, nil
}

// dispatchAndClear envia text e, no sucesso, aplica onSuccess ao estado.
func (s *PanelService) dispatchAndClear(ctx context.Context, id, text, flow string, onSuccess func(*domain.PanelState)) (*SubmitResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		state, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &SubmitResult{State: state}, nil
	}

	// Passo 1: limpa o erro ANTES da tentativa e pega o thread id atual.
	var threadID string
	state, err := s.store.Update(ctx, id, func(st *domain.PanelState) error {
		clearError(st)
		threadID = st.ThreadID
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Passo 2: envia sem segurar nenhum lock.
	newThreadID, sendErr := s.send(ctx, id, threadID, trimmed, flow)

	// Passo 3: aplica o resultado.
	state, err = s.store.Update(ctx, id, func(st *domain.PanelState) error {
		if sendErr != nil {
			showError(st, transportErrorMessage(sendErr), domain.ErrorSourceTransport, s.now())
			return nil
		}
		if newThreadID != "" {
			st.ThreadID = newThreadID
		}
		if onSuccess != nil {
			onSuccess(st)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{Message: trimmed, State: state}
	if sendErr != nil {
		return result, sendErr
	}
	return result, nil
}

// send chama o ChatTransport e registra métricas/logs do envio.
func (s *PanelService) send(ctx context.Context, id, threadID, text, flow string) (string, error) {
	ctx, span := panelTracer.Start(ctx, "PanelService.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("panel.flow", flow),
		attribute.String("panel.session_id", id),
	)

	newThreadID, err := s.transport.SendUserMessage(ctx, threadID, text)
	if err != nil {
		s.metrics.IncrMessage(flow, "error")
		s.metrics.IncrExternalError("chatkit")
		s.logger.Error("chat transport send failed",
			zap.String("session_id", id),
			zap.String("flow", flow),
			zap.Int("message_length", len(text)),
			zap.Error(err),
		)
		return "", err
	}

	s.metrics.IncrMessage(flow, "success")
	s.logger.Info("chat message sent",
		zap.String("session_id", id),
		zap.String("flow", flow),
		zap.Int("message_length", len(text)),
	)
	return newThreadID, nil
}

func (s *PanelService) observe(operation string, start time.Time) {
	s.metrics.RecordRequestDuration(operation, time.Since(start))
}

// ============================================================
// ErrorState — dismiss e erros do widget
// ============================================================

// DismissError limpa o ErrorState. Sem erro, não faz nada.
func (s *PanelService) DismissError(ctx context.Context, id string) (*domain.PanelState, error) {
	ctx, span := panelTracer.Start(ctx, "PanelService.DismissError")
	defer span.End()

	var cleared bool
	state, err := s.store.Update(ctx, id, func(st *domain.PanelState) error {
		cleared = clearError(st)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cleared {
		s.metrics.IncrErrorDismissed()
	}
	return state, nil
}

// ReportWidgetError publica no ErrorFeed um erro vindo do widget.
// O estado da sessão é alterado por quem consome o feed (Run).
func (s *PanelService) ReportWidgetError(ctx context.Context, id, message string) error {
	ctx, span := panelTracer.Start(ctx, "PanelService.ReportWidgetError")
	defer span.End()

	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}

	event := domain.WidgetErrorEvent{SessionID: id, Message: message, At: s.now()}
	if err := s.feed.Publish(ctx, event); err != nil {
		return &maindomain.ErrExternalService{Service: "error-feed", Err: err}
	}
	return nil
}

// ApplyWidgetError aplica um evento do widget ao ErrorState da sessão,
// substituindo o erro atual.
func (s *PanelService) ApplyWidgetError(ctx context.Context, event domain.WidgetErrorEvent) error {
	msg := widgetErrorMessage(event.Message)
	at := event.At
	if at.IsZero() {
		at = s.now()
	}

	_, err := s.store.Update(ctx, event.SessionID, func(st *domain.PanelState) error {
		showError(st, msg, domain.ErrorSourceWidget, at)
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncrWidgetError()
	s.logger.Warn("chat widget error",
		zap.String("session_id", event.SessionID),
		zap.String("error_source", string(domain.ErrorSourceWidget)),
		zap.String("message", msg),
	)
	return nil
}

// Run inscreve o consumidor no ErrorFeed e o consome até ctx terminar.
func (s *PanelService) Run(ctx context.Context) error {
	events, err := s.SubscribeWidgetErrors(ctx)
	if err != nil {
		return err
	}
	return s.Consume(ctx, events)
}

// SubscribeWidgetErrors inscreve no ErrorFeed. Chamado antes do servidor
// subir, nenhum erro reportado via HTTP chega sem assinante.
func (s *PanelService) SubscribeWidgetErrors(ctx context.Context) (<-chan domain.WidgetErrorEvent, error) {
	return s.feed.Subscribe(ctx)
}

// Consume aplica os eventos até o canal fechar. Eventos de sessões que já
// expiraram são descartados.
func (s *PanelService) Consume(ctx context.Context, events <-chan domain.WidgetErrorEvent) error {
	s.logger.Info("widget error consumer started")
	for event := range events {
		if err := s.ApplyWidgetError(ctx, event); err != nil {
			var notFound *maindomain.ErrNotFound
			if errors.As(err, &notFound) {
				s.logger.Debug("widget error for unknown session dropped",
					zap.String("session_id", event.SessionID),
				)
				continue
			}
			s.logger.Error("apply widget error failed",
				zap.String("session_id", event.SessionID),
				zap.Error(err),
			)
		}
	}
	s.logger.Info("widget error consumer stopped")
	return nil
}
