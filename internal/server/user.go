package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/customs-ai/hs-classify/internal/auth"
	"github.com/customs-ai/hs-classify/internal/model"
)

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	account, err := s.gate.Balance(r.Context(), userID)
	if err != nil {
		zap.L().Error("credits endpoint: balance lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch credits")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"credits_remaining": account.Remaining,
		"credits_used":      account.Used,
		"plan":              account.Plan,
	})
}

const (
	historyDefaultLimit = 50
	historyMaxLimit     = 200
)

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	limit := queryInt(r, "limit", historyDefaultLimit)
	if limit <= 0 || limit > historyMaxLimit {
		limit = historyDefaultLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	var history []model.HistoryRecord
	if s.store != nil {
		var err error
		history, err = s.store.ListClassifications(r.Context(), userID, limit, offset)
		if err != nil {
			zap.L().Error("history endpoint: list failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to fetch history")
			return
		}
	}
	if history == nil {
		history = []model.HistoryRecord{}
	}

	if r.URL.Query().Get("format") == "xlsx" {
		writeHistoryXLSX(w, history)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// writeHistoryXLSX exports history as a spreadsheet for broker handoff.
func writeHistoryXLSX(w http.ResponseWriter, history []model.HistoryRecord) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Classifications")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch history")
		return
	}

	header := sheet.AddRow()
	for _, col := range []string{"Date", "Product", "HS Code", "Description", "Confidence", "Reasoning"} {
		header.AddCell().Value = col
	}
	for _, rec := range history {
		row := sheet.AddRow()
		row.AddCell().Value = rec.CreatedAt.Format("2006-01-02 15:04")
		row.AddCell().Value = rec.Description
		row.AddCell().Value = rec.HSCode
		row.AddCell().Value = rec.HSDescription
		row.AddCell().Value = fmt.Sprintf("%.0f%%", rec.Confidence*100)
		row.AddCell().Value = rec.Reasoning
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="classification-history.xlsx"`)
	if err := file.Write(w); err != nil {
		zap.L().Error("history endpoint: xlsx write failed", zap.Error(err))
	}
}
