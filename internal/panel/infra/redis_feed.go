package infra

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// WidgetErrorChannel é o canal pub/sub dos erros do widget.
const WidgetErrorChannel = "panel:widget-errors"

// RedisErrorFeed espalha os erros do widget entre todas as instâncias do
// BFA via Redis pub/sub. Quem aplicar o evento primeiro vence; o update
// é idempotente (mesma mensagem, mesma sessão).
type RedisErrorFeed struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisErrorFeed cria o feed sobre um client já conectado.
func NewRedisErrorFeed(client *redis.Client, logger *zap.Logger) *RedisErrorFeed {
	return &RedisErrorFeed{client: client, logger: logger}
}

func (f *RedisErrorFeed) Publish(ctx context.Context, event domain.WidgetErrorEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal widget error event: %w", err)
	}
	receivers, err := f.client.Publish(ctx, WidgetErrorChannel, data).Result()
	if err != nil {
		return err
	}
	if receivers == 0 {
		f.logger.Warn("widget error channel has no subscribers, event dropped",
			zap.String("channel", WidgetErrorChannel),
			zap.String("session_id", event.SessionID),
		)
	}
	return nil
}

// Subscribe confirma a assinatura antes de retornar, para que nenhum evento
// publicado depois da chamada seja perdido.
func (f *RedisErrorFeed) Subscribe(ctx context.Context) (<-chan domain.WidgetErrorEvent, error) {
	pubsub := f.client.Subscribe(ctx, WidgetErrorChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", WidgetErrorChannel, err)
	}

	out := make(chan domain.WidgetErrorEvent, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event domain.WidgetErrorEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					f.logger.Warn("invalid widget error event", zap.Error(err))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
