package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docqa/internal/conversation"
	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/pkg/response"
)

type ConversationHandler struct {
	sessions *conversation.Store
}

func NewConversationHandler(sessions *conversation.Store) *ConversationHandler {
	return &ConversationHandler{sessions: sessions}
}

type conversationResponse struct {
	SessionID string       `json:"session_id"`
	Turns     []model.Turn `json:"turns"`
}

func (h *ConversationHandler) Get(c *gin.Context) {
	session := c.Param("session")
	turns := []model.Turn{}
	if hist, ok := h.sessions.Peek(session); ok {
		turns = append(turns, hist.Turns()...)
	}
	response.Success(c, conversationResponse{SessionID: session, Turns: turns})
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	session := c.Param("session")
	if hist, ok := h.sessions.Peek(session); ok {
		hist.Reset()
	}
	h.sessions.Delete(session)
	response.Success(c, gin.H{"session_id": session})
}
