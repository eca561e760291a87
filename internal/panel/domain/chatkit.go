package domain

// ============================================================
// ChatKit — Request/Response entre o BFA e a API do ChatKit
// ============================================================

// Tipos de request aceitos pela API do ChatKit.
const (
	ChatKitCreateThread   = "threads.create"
	ChatKitAddUserMessage = "threads.add_user_message"
)

// ChatKitRequest é o envelope que o BFA envia via POST {CHATKIT_API_URL}:
//
//	{"type": "threads.add_user_message",
//	 "params": {"thread_id": "thr_123", "input": {"content": [{"type": "input_text", "text": "..."}]}}}
//
// Sem thread_id, o tipo é threads.create e o ChatKit abre uma conversa nova.
type ChatKitRequest struct {
	Type   string        `json:"type"`
	Params ChatKitParams `json:"params"`
}

// ChatKitParams carrega a conversa alvo e a mensagem do usuário.
type ChatKitParams struct {
	ThreadID string       `json:"thread_id,omitempty"`
	Input    ChatKitInput `json:"input"`
}

// ChatKitInput é a mensagem do usuário no formato do ChatKit.
type ChatKitInput struct {
	Content []ChatKitContent `json:"content"`
}

// ChatKitContent é um bloco de conteúdo. O painel só manda input_text.
type ChatKitContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ChatKitResponse é a confirmação devolvida pelo ChatKit.
type ChatKitResponse struct {
	ThreadID string `json:"thread_id"`
	ItemID   string `json:"item_id,omitempty"`
}

// ChatKitErrorBody é o corpo de erro do ChatKit. Message pode vir vazio.
type ChatKitErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

// NewUserMessage monta o request para enviar text na conversa threadID.
func NewUserMessage(threadID, text string) *ChatKitRequest {
	reqType := ChatKitAddUserMessage
	if threadID == "" {
		reqType = ChatKitCreateThread
	}
	return &ChatKitRequest{
		Type: reqType,
		Params: ChatKitParams{
			ThreadID: threadID,
			Input: ChatKitInput{
				Content: []ChatKitContent{{Type: "input_text", Text: text}},
			},
		},
	}
}
