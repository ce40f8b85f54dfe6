package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/showcaselabs/showcase-go/internal/api"
	"github.com/showcaselabs/showcase-go/internal/appctx"
	"github.com/showcaselabs/showcase-go/internal/store"
)

// Handler exposes the chat endpoints.
type Handler struct {
	orchestrator *Orchestrator
}

// NewHandler creates a handler over the given orchestrator.
func NewHandler(o *Orchestrator) *Handler {
	return &Handler{orchestrator: o}
}

// SendMessageRequest is the POST /api/v1/chat body. SessionID is omitted
// to start a new session.
type SendMessageRequest struct {
	SessionID *string `json:"session_id"`
	Message   string  `json:"message"`
}

// HistoryResponse is the GET /api/v1/chat/history response.
type HistoryResponse struct {
	SessionID string               `json:"session_id"`
	Messages  []*store.ChatMessage `json:"messages"`
}

// HandleSendMessage handles POST /api/v1/chat. The response is the bot
// message; its session_id tells a fresh caller which session was created.
func (h *Handler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "message is required")
		return
	}

	botMsg, err := h.orchestrator.SendMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteNotFound(w, "session not found")
			return
		}
		if errors.Is(err, ErrEmptyMessage) {
			api.WriteBadRequest(w, api.ReasonMissingField, "message is required")
			return
		}
		log.Error("send message failed", "error", err)
		api.WriteInternalError(w, "failed to process message")
		return
	}

	api.WriteJSON(w, http.StatusOK, botMsg)
}

// HandleGetHistory handles GET /api/v1/chat/history. A session_id query
// parameter loads an existing session; omitting it starts a new one with
// an empty history.
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var sessionID *string
	if v := r.URL.Query().Get("session_id"); v != "" {
		sessionID = &v
	}

	id, messages, err := h.orchestrator.GetHistory(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteNotFound(w, "session not found")
			return
		}
		log.Error("get history failed", "error", err)
		api.WriteInternalError(w, "failed to load history")
		return
	}

	api.WriteJSON(w, http.StatusOK, HistoryResponse{
		SessionID: id,
		Messages:  messages,
	})
}
