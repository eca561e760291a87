// Package port — panel_port.go define as interfaces (ports) que o
// PanelService usa para falar com o mundo externo.
//
// Seguindo a arquitetura hexagonal, o service depende dessas interfaces
// e NÃO dos adapters concretos (ChatKit HTTP, memória, Redis).
package port

import (
	"context"

	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/domain"
)

// ChatTransport entrega uma mensagem de texto do usuário ao ChatKit.
//
// threadID vazio abre uma conversa nova; o threadID devolvido deve ser
// usado nas próximas mensagens da mesma sessão.
type ChatTransport interface {
	SendUserMessage(ctx context.Context, threadID, text string) (string, error)
}

// SessionStore guarda o estado das sessões do painel.
//
// Update é o único caminho de escrita: fn recebe o estado atual e pode
// alterá-lo; se fn retornar erro nada é persistido. Implementações
// garantem um escritor por vez para a mesma sessão.
type SessionStore interface {
	Create(ctx context.Context, state *domain.PanelState) error
	Get(ctx context.Context, id string) (*domain.PanelState, error)
	Update(ctx context.Context, id string, fn func(*domain.PanelState) error) (*domain.PanelState, error)
	Delete(ctx context.Context, id string) error
}

// ErrorFeed é o canal assíncrono de erros do widget.
//
// Subscribe devolve um canal que é fechado quando ctx termina.
type ErrorFeed interface {
	Publish(ctx context.Context, event domain.WidgetErrorEvent) error
	Subscribe(ctx context.Context) (<-chan domain.WidgetErrorEvent, error)
}
