package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/customs-ai/hs-classify/internal/auth"
	"github.com/customs-ai/hs-classify/internal/model"
	"github.com/customs-ai/hs-classify/internal/pipeline"
)

type classifyRequest struct {
	Description string `json:"description"`
}

// handleClassify streams one classification. Pre-flight failures (bad
// body, exhausted credits) are plain JSON errors; once the stream opens,
// failures arrive as error events inside it.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Description is required")
		return
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "Description is required")
		return
	}

	check, err := s.gate.Check(r.Context(), userID)
	if err != nil {
		zap.L().Error("classify: credit check failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Classification failed. Please try again.")
		return
	}
	if !check.Allowed {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":             check.Message,
			"credits_remaining": check.Remaining,
			"plan":              check.Plan,
		})
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Classification failed. Please try again.")
		return
	}

	outcome, err := s.orchestrator.Run(r.Context(), req.Description, func(ev pipeline.Event) error {
		return sse.Send(ev)
	})
	if err != nil {
		// Terminal error event (if any) was already sent; nothing to
		// commit.
		return
	}

	// The result was delivered, so settle credits even if the client hangs
	// up right after the done event.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rec := model.HistoryRecord{
		UserID:        userID,
		Description:   req.Description,
		HSCode:        outcome.Result.PrimaryHSCode,
		HSDescription: outcome.Result.PrimaryDescription,
		Confidence:    outcome.Result.Confidence,
		Reasoning:     outcome.Result.Reasoning,
		Alternatives:  outcome.Result.Alternatives,
		EdgeCases:     outcome.Result.EdgeCases,
		TokensUsed:    int(outcome.Usage.InputTokens + outcome.Usage.OutputTokens),
	}
	if err := s.gate.Commit(ctx, userID, rec); err != nil {
		zap.L().Error("classify: commit failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}
