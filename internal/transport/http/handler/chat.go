package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"policyqa/internal/app"
	"policyqa/internal/rag"
	"policyqa/internal/transport/http/response"
)

type ChatHandler struct {
	answerer       *rag.Answerer
	historyService *app.HistoryService
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

func NewChatHandler(answerer *rag.Answerer, historyService *app.HistoryService) *ChatHandler {
	return &ChatHandler{
		answerer:       answerer,
		historyService: historyService,
	}
}

// Ask answers one question against the user's ingested documents.
// Provider failures map to 502 so clients can show a try-again-later
// message; an empty question is the caller's mistake and maps to 400.
func (h *ChatHandler) Ask(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	answer, err := h.answerer.Answer(c.Request.Context(), userID, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrInvalidQuestion):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidQuestion, "please enter a question")
		case errors.Is(err, rag.ErrEmbeddingProvider), errors.Is(err, rag.ErrCompletionProvider):
			response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailure, "service temporarily unavailable, please try again later")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ask failed")
		}
		return
	}

	response.OK(c, answer)
}

func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	limit := 0
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	entries, err := h.historyService.GetHistory(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch history failed")
		return
	}
	response.OK(c, entries)
}
