package infra

import (
	"context"
	"fmt"
	"time"

	maindomain "github.com/boddenberg/giant-coach-panel-bfa/internal/domain"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/infra/cache"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/domain"
)

// MemorySessionStore guarda as sessões no cache TTL em memória.
// Serve para uma única instância do BFA (e para testes).
type MemorySessionStore struct {
	sessions *cache.InMemory[domain.PanelState]
}

// NewMemorySessionStore cria o store sobre um cache já configurado com o TTL
// de sessão.
func NewMemorySessionStore(sessions *cache.InMemory[domain.PanelState]) *MemorySessionStore {
	return &MemorySessionStore{sessions: sessions}
}

func (s *MemorySessionStore) Create(_ context.Context, state *domain.PanelState) error {
	_, err := s.sessions.Compute(state.ID, func(_ domain.PanelState, exists bool) (domain.PanelState, error) {
		if exists {
			return domain.PanelState{}, fmt.Errorf("panel session %s already exists", state.ID)
		}
		return *state, nil
	})
	return err
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*domain.PanelState, error) {
	state, ok := s.sessions.Get(id)
	if !ok {
		return nil, &maindomain.ErrNotFound{Resource: "panel session", ID: id}
	}
	return &state, nil
}

// Update roda fn com o lock do cache: um escritor por vez.
func (s *MemorySessionStore) Update(_ context.Context, id string, fn func(*domain.PanelState) error) (*domain.PanelState, error) {
	next, err := s.sessions.Compute(id, func(current domain.PanelState, exists bool) (domain.PanelState, error) {
		if !exists {
			return domain.PanelState{}, &maindomain.ErrNotFound{Resource: "panel session", ID: id}
		}
		if err := fn(&current); err != nil {
			return domain.PanelState{}, err
		}
		current.UpdatedAt = time.Now().UTC()
		return current, nil
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.sessions.Delete(id)
	return nil
}

// Ping satisfaz o health check; a memória está sempre disponível.
func (s *MemorySessionStore) Ping(context.Context) error {
	return nil
}
