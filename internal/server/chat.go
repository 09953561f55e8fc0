package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/customs-ai/hs-classify/internal/chat"
)

type chatRequest struct {
	Message string         `json:"message"`
	Context *chat.Context  `json:"context"`
	History []chat.Message `json:"history"`
}

// handleChat streams a follow-up assistant reply. Chat is not metered.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Message and context are required")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" || req.Context == nil {
		writeError(w, http.StatusBadRequest, "Message and context are required")
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Chat failed. Please try again.")
		return
	}

	err = s.assistant.Respond(r.Context(), req.Message, *req.Context, req.History, func(ev chat.Event) error {
		return sse.Send(ev)
	})
	if err != nil {
		zap.L().Debug("chat: reply not completed", zap.Error(err))
	}
}
