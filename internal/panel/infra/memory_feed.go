package infra

import (
	"context"
	"sync"

	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/domain"

	"go.uber.org/zap"
)

// MemoryErrorFeed é o canal de erros do widget dentro do processo.
// Cada assinante tem um buffer próprio; assinante cheio perde o evento.
type MemoryErrorFeed struct {
	mu     sync.RWMutex
	subs   map[int]chan domain.WidgetErrorEvent
	nextID int
	buffer int
	logger *zap.Logger
}

// NewMemoryErrorFeed cria o feed com bufferSize eventos por assinante.
func NewMemoryErrorFeed(bufferSize int, logger *zap.Logger) *MemoryErrorFeed {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &MemoryErrorFeed{
		subs:   make(map[int]chan domain.WidgetErrorEvent),
		buffer: bufferSize,
		logger: logger,
	}
}

// Publish entrega o evento a todos os assinantes sem bloquear.
func (f *MemoryErrorFeed) Publish(_ context.Context, event domain.WidgetErrorEvent) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.subs) == 0 {
		f.logger.Warn("widget error feed has no subscribers, event dropped",
			zap.String("session_id", event.SessionID),
		)
		return nil
	}
	for id, ch := range f.subs {
		select {
		case ch <- event:
		default:
			f.logger.Warn("widget error feed full, event dropped",
				zap.Int("subscriber", id),
				zap.String("session_id", event.SessionID),
			)
		}
	}
	return nil
}

// Subscribe registra um assinante até ctx terminar.
func (f *MemoryErrorFeed) Subscribe(ctx context.Context) (<-chan domain.WidgetErrorEvent, error) {
	ch := make(chan domain.WidgetErrorEvent, f.buffer)

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(ch)
		f.mu.Unlock()
	}()

	return ch, nil
}
