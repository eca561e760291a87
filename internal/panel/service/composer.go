package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	maindomain "github.com/boddenberg/giant-coach-panel-bfa/internal/domain"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/domain"
)

// ============================================================
// Mensagens exibidas ao usuário
// ============================================================

const (
	MsgMissingField   = "Please select a date and time before scheduling."
	MsgMissingJourney = "Please select a journey."
	MsgEmptyQuestion  = "Please enter your question."

	// FallbackTransportError é usado quando a falha do ChatKit não traz mensagem.
	FallbackTransportError = "Failed to send message."

	// FallbackWidgetError é usado quando o erro do widget não traz mensagem.
	FallbackWidgetError = "ChatKit error"
)

// ============================================================
// Composer — formulário estruturado → uma mensagem de texto
// ============================================================

// ComposeAppointmentMessage valida o formulário de agendamento e devolve
// a mensagem que vai pro chat. Não altera o formulário: limpar os campos
// é responsabilidade de quem submete, e só depois do envio.
func ComposeAppointmentMessage(req domain.AppointmentRequest) (string, error) {
	if strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.Time) == "" {
		field := "date"
		if strings.TrimSpace(req.Date) != "" {
			field = "time"
		}
		return "", &maindomain.ErrValidation{
			Kind:    maindomain.ValidationMissingField,
			Field:   field,
			Message: MsgMissingField,
		}
	}
	return fmt.Sprintf("I would like to schedule an appointment on %s at %s.", req.Date, req.Time), nil
}

// ComposeJourneyMessage valida o formulário de jornada. A pergunta é
// enviada sem espaços nas pontas.
func ComposeJourneyMessage(q domain.JourneyQuestion) (string, error) {
	if strings.TrimSpace(q.Journey) == "" {
		return "", &maindomain.ErrValidation{
			Kind:    maindomain.ValidationMissingJourney,
			Field:   "journey",
			Message: MsgMissingJourney,
		}
	}

	question := strings.TrimSpace(q.Question)
	if question == "" {
		return "", &maindomain.ErrValidation{
			Kind:    maindomain.ValidationEmptyQuestion,
			Field:   "question",
			Message: MsgEmptyQuestion,
		}
	}
	return fmt.Sprintf("Regarding the %s Journey: %s", q.Journey, question), nil
}

// ============================================================
// ErrorState — transições
// ============================================================

// showError leva o painel para ErrorShown, substituindo qualquer erro anterior.
func showError(st *domain.PanelState, message string, source domain.ErrorSource, now time.Time) {
	st.Error = &domain.ErrorState{
		Message:  message,
		Source:   source,
		RaisedAt: now,
	}
}

// clearError leva o painel para Idle. Sem efeito se já estiver Idle.
func clearError(st *domain.PanelState) bool {
	if st.Error == nil {
		return false
	}
	st.Error = nil
	return true
}

// transportErrorMessage extrai a mensagem de uma falha do ChatTransport.
// O wrapper ErrExternalService é descartado: o usuário vê a causa.
func transportErrorMessage(err error) string {
	var ext *maindomain.ErrExternalService
	if errors.As(err, &ext) {
		err = ext.Err
	}
	if err == nil {
		return FallbackTransportError
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return FallbackTransportError
}

// widgetErrorMessage aplica o fallback do canal de erros do widget.
func widgetErrorMessage(message string) string {
	if msg := strings.TrimSpace(message); msg != "" {
		return msg
	}
	return FallbackWidgetError
}
