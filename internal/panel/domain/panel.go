// Package domain — panel.go define os tipos do painel do Giant Coach.
//
// O painel envolve o widget ChatKit com dois formulários auxiliares:
// agendamento de sessão e perguntas sobre uma jornada. Cada formulário
// vira UMA mensagem de texto enviada ao chat como se o usuário tivesse
// digitado.
//
// O fluxo completo:
//  1. Frontend cria uma sessão do painel (POST /v1/panel/sessions)
//  2. Usuário preenche os formulários → BFA guarda o estado transitório
//  3. Submit → BFA valida, compõe a mensagem e manda pro ChatKit
//  4. Qualquer erro (validação, transporte, widget) vira o ErrorState
//  5. Usuário fecha o alerta → ErrorState volta a vazio
package domain

import (
	"slices"
	"time"
)

// ============================================================
// Formulários — estado transitório de cada fluxo
// ============================================================

// AppointmentRequest é o estado do formulário "Schedule an appointment".
// Date vem do date picker (YYYY-MM-DD), Time é um dos TimeSlots.
type AppointmentRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// JourneyQuestion é o estado do formulário "Ask about a journey".
type JourneyQuestion struct {
	Journey  string `json:"journey"`
	Question string `json:"question"`
}

// ============================================================
// ErrorState — o único erro visível no painel
// ============================================================

// ErrorSource indica de onde veio o erro mostrado.
type ErrorSource string

const (
	ErrorSourceValidation ErrorSource = "validation"
	ErrorSourceTransport  ErrorSource = "transport"
	ErrorSourceWidget     ErrorSource = "widget"
)

// ErrorState é o erro atualmente exibido. Nunca existe fila:
// o mais novo substitui o anterior. nil significa Idle.
type ErrorState struct {
	Message  string      `json:"message"`
	Source   ErrorSource `json:"source"`
	RaisedAt time.Time   `json:"raised_at"`
}

// ============================================================
// PanelState — tudo que uma sessão do painel guarda
// ============================================================

// PanelState é o estado de uma sessão. Vive no SessionStore e expira
// junto com a sessão (TTL).
type PanelState struct {
	ID          string             `json:"id"`
	Appointment AppointmentRequest `json:"appointment"`
	Journey     JourneyQuestion    `json:"journey"`
	Error       *ErrorState        `json:"error,omitempty"`

	// ThreadID é a conversa do ChatKit. Vazio até a primeira mensagem.
	ThreadID string `json:"thread_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ============================================================
// Enumerações — opções dos selects do painel
// ============================================================

// Option é um par valor/rótulo de um select.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// TimeSlots são os horários oferecidos para agendamento.
var TimeSlots = []Option{
	{Value: "09:00", Label: "09:00 AM"},
	{Value: "12:00", Label: "12:00 PM"},
	{Value: "15:00", Label: "03:00 PM"},
}

// Journeys são as jornadas do programa de coaching.
var Journeys = []Option{
	{Value: "Awareness", Label: "Journey of Awareness"},
	{Value: "Acceptance", Label: "Journey of Acceptance"},
	{Value: "Empowerment", Label: "Journey of Empowerment"},
	{Value: "Abundance", Label: "Journey of Abundance"},
}

// IsTimeSlot reports whether v is one of TimeSlots.
func IsTimeSlot(v string) bool {
	return hasOption(TimeSlots, v)
}

// IsJourney reports whether v is one of Journeys.
func IsJourney(v string) bool {
	return hasOption(Journeys, v)
}

func hasOption(opts []Option, v string) bool {
	return slices.ContainsFunc(opts, func(o Option) bool { return o.Value == v })
}

// ============================================================
// Start screen — configuração servida pro widget
// ============================================================

// Prompt é um atalho da tela inicial do ChatKit.
type Prompt struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// PanelConfig é o que o frontend precisa para montar o painel e o widget.
type PanelConfig struct {
	ChatKitURL         string   `json:"chatkit_url"`
	DomainKey          string   `json:"domain_key"`
	ColorScheme        string   `json:"color_scheme"`
	AttachmentsEnabled bool     `json:"attachments_enabled"`
	Greeting           string   `json:"greeting"`
	Prompts            []Prompt `json:"prompts"`
	TimeSlots          []Option `json:"time_slots"`
	Journeys           []Option `json:"journeys"`
}

// DefaultGreeting e DefaultPrompts compõem a start screen do Giant Coach.
const DefaultGreeting = "Hi, I'm your Giant Coach. How can I help today?"

var DefaultPrompts = []Prompt{
	{Title: "Reset my plan", Text: "Help me reset my focus plan for this week."},
	{Title: "New habit", Text: "Suggest a new habit to boost my confidence."},
	{Title: "Coaching recap", Text: "Summarize my last coaching conversation."},
}

// ============================================================
// Eventos do widget
// ============================================================

// WidgetErrorEvent é um erro reportado pelo canal assíncrono do widget.
// Message vazio significa que o erro não trouxe mensagem.
type WidgetErrorEvent struct {
	SessionID string    `json:"session_id"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}
