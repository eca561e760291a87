package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	maindomain "github.com/boddenberg/giant-coach-panel-bfa/internal/domain"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/domain"

	"github.com/redis/go-redis/v9"
)

// maxTxAttempts limita as tentativas do WATCH quando outra instância
// escreve a mesma sessão ao mesmo tempo.
const maxTxAttempts = 5

// RedisSessionStore guarda cada sessão como JSON em panel:session:{id},
// com TTL renovado a cada escrita.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore cria o store sobre um client já conectado.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return "panel:session:" + id
}

func (s *RedisSessionStore) Create(ctx context.Context, state *domain.PanelState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal panel session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, sessionKey(state.ID), data, s.ttl).Result()
	if err != nil {
		return &maindomain.ErrExternalService{Service: "redis", Err: err}
	}
	if !ok {
		return fmt.Errorf("panel session %s already exists", state.ID)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*domain.PanelState, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &maindomain.ErrNotFound{Resource: "panel session", ID: id}
	}
	if err != nil {
		return nil, &maindomain.ErrExternalService{Service: "redis", Err: err}
	}

	var state domain.PanelState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal panel session: %w", err)
	}
	return &state, nil
}

// Update usa WATCH/MULTI: se outra escrita acontecer entre a leitura e o
// EXEC, a transação falha e fn roda de novo sobre o estado novo.
func (s *RedisSessionStore) Update(ctx context.Context, id string, fn func(*domain.PanelState) error) (*domain.PanelState, error) {
	key := sessionKey(id)

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		var out *domain.PanelState

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return &maindomain.ErrNotFound{Resource: "panel session", ID: id}
			}
			if err != nil {
				return err
			}

			var state domain.PanelState
			if err := json.Unmarshal(data, &state); err != nil {
				return fmt.Errorf("unmarshal panel session: %w", err)
			}
			if err := fn(&state); err != nil {
				return err
			}
			state.UpdatedAt = time.Now().UTC()

			next, err := json.Marshal(&state)
			if err != nil {
				return fmt.Errorf("marshal panel session: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, s.ttl)
				return nil
			})
			if err != nil {
				return err
			}
			out = &state
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	return nil, &maindomain.ErrExternalService{
		Service: "redis",
		Err:     fmt.Errorf("update panel session %s: too much contention", id),
	}
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return &maindomain.ErrExternalService{Service: "redis", Err: err}
	}
	return nil
}

// Ping checa a conexão com o Redis para o /healthz.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
