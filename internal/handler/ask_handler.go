package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docqa/internal/conversation"
	"github.com/xxxsen/docqa/internal/pkg/errcode"
	"github.com/xxxsen/docqa/internal/pkg/response"
	"github.com/xxxsen/docqa/internal/service"
)

type AskHandler struct {
	answers  *service.AnswerService
	sessions *conversation.Store
}

func NewAskHandler(answers *service.AnswerService, sessions *conversation.Store) *AskHandler {
	return &AskHandler{answers: answers, sessions: sessions}
}

type askRequest struct {
	DocID     string `json:"doc_id"`
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	req.DocID = strings.TrimSpace(req.DocID)
	if req.DocID == "" || strings.TrimSpace(req.Question) == "" {
		response.Error(c, errcode.ErrInvalid, "doc_id and question are required")
		return
	}
	tx, err := h.answers.Answer(c.Request.Context(), h.sessions.Get(req.SessionID), req.DocID, req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, tx)
}
