package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	maindomain "github.com/boddenberg/giant-coach-panel-bfa/internal/domain"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/infra/resilience"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/domain"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// tracer é o tracer OpenTelemetry para o módulo panel/infra.
var tracer = otel.Tracer("panel/infra")

// maxErrorBody limita quanto do corpo de erro do ChatKit é lido.
const maxErrorBody = 64 << 10

// ============================================================
// ChatKitClient — transporte HTTP até a API do ChatKit
// ============================================================

// ChatKitConfig é a configuração do widget: endpoint e domain key.
// É passada explicitamente na construção, nunca lida de variáveis globais.
type ChatKitConfig struct {
	APIURL    string
	DomainKey string
}

// ChatKitClient implementa port.ChatTransport falando com a API do ChatKit.
//
//	Request:  POST {APIURL}  X-ChatKit-Domain-Key: {DomainKey}
//	          {"type": "threads.add_user_message", "params": {...}}
//	Response: {"thread_id": "thr_123", "item_id": "msg_456"}
//	Erro:     {"error": {"message": "..."}}
type ChatKitClient struct {
	httpClient *http.Client
	cfg        ChatKitConfig
	cb         *gobreaker.CircuitBreaker
	retry      resilience.Config
	bulkhead   *resilience.Bulkhead
}

// NewChatKitClient cria o client do ChatKit. retry.MaxConcurrency limita
// quantos envios podem estar em voo ao mesmo tempo.
func NewChatKitClient(httpClient *http.Client, cfg ChatKitConfig, cb *gobreaker.CircuitBreaker, retry resilience.Config) *ChatKitClient {
	return &ChatKitClient{
		httpClient: httpClient,
		cfg:        cfg,
		cb:         cb,
		retry:      retry,
		bulkhead:   resilience.NewBulkhead(retry.MaxConcurrency),
	}
}

// TransportError é a falha devolvida pelo ChatKit. Message é o que o
// servidor informou e pode ser vazio.
type TransportError struct {
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	return e.Message
}

// ChatKitBreakerSuccess é o filtro do circuit breaker do ChatKit: 4xx (exceto
// 429) é erro do request, não do ChatKit, e não conta como falha.
func ChatKitBreakerSuccess(err error) bool {
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		return false
	}
	return tErr.StatusCode >= 400 && tErr.StatusCode < 500 && tErr.StatusCode != http.StatusTooManyRequests
}

// SendUserMessage envia text como mensagem do usuário na conversa threadID
// (ou abre uma conversa nova se threadID for vazio) e devolve o thread id.
//
// 5xx e 429 são tentados de novo com backoff; outros 4xx falham na hora.
// Timeout vira ErrTimeout; breaker aberto vira ErrCircuitOpen.
func (c *ChatKitClient) SendUserMessage(ctx context.Context, threadID, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "ChatKitClient.SendUserMessage")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("chatkit.new_thread", threadID == ""),
		attribute.Int("message.length", len(text)),
	)

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return "", &maindomain.ErrExternalService{Service: "chatkit", Err: err}
	}
	defer c.bulkhead.Release()

	body, err := json.Marshal(domain.NewUserMessage(threadID, text))
	if err != nil {
		return "", fmt.Errorf("marshal chatkit request: %w", err)
	}

	result, err := c.cb.Execute(func() (any, error) {
		var ckResp domain.ChatKitResponse

		innerErr := resilience.RetryWithBackoff(ctx, c.retry, func() error {
			ckResp = domain.ChatKitResponse{}

			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
			if err != nil {
				return resilience.Permanent(fmt.Errorf("create http request: %w", err))
			}
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("X-ChatKit-Domain-Key", c.cfg.DomainKey)

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return fmt.Errorf("http call to chatkit: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				tErr := decodeTransportError(resp)
				if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
					return tErr
				}
				return resilience.Permanent(tErr)
			}

			// Corpo vazio é uma confirmação sem thread id novo.
			if err := json.NewDecoder(resp.Body).Decode(&ckResp); err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("decode chatkit response: %w", err)
			}
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &ckResp, nil
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chatkit send failed")
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &maindomain.ErrCircuitOpen{Service: "chatkit"}
		}
		if isTimeout(err) {
			return "", &maindomain.ErrTimeout{Operation: "chatkit.send"}
		}
		return "", &maindomain.ErrExternalService{Service: "chatkit", Err: err}
	}

	ckResp := result.(*domain.ChatKitResponse)
	if ckResp.ThreadID == "" {
		return threadID, nil
	}
	return ckResp.ThreadID, nil
}

// isTimeout reconhece o timeout do http.Client e o deadline do contexto.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

// decodeTransportError lê o corpo de erro do ChatKit. Corpos que não são
// o envelope {"error": {...}} viram um TransportError sem mensagem.
func decodeTransportError(resp *http.Response) *TransportError {
	tErr := &TransportError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return tErr
	}

	var body domain.ChatKitErrorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		tErr.Message = body.Error.Message
	}
	return tErr
}
