package http

import (
	"log/slog"
	"net/http"
	"strconv"
)

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseDateParam(r, "start")
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := parseDateParam(r, "end")
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := projectionCacheKey(userID, start, end)
	if points, found := s.projectionCache.Get(key); found {
		slog.DebugContext(r.Context(), "Projection cache hit",
			"user_id", userID,
			"start", start.String(),
			"end", end.String())
		writeJSON(w, http.StatusOK, points)
		return
	}

	points, err := s.service.EstimatedBudgetInRange(r.Context(), userID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.projectionCache.Set(key, points)
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	balance, err := s.service.EstimatedBalanceAtEndOfMonth(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"estimatedBalance": balance})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := s.service.MonthlySummaryForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRevenuesExpenses(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseDateParam(r, "start")
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := parseDateParam(r, "end")
	if err != nil {
		writeError(w, r, err)
		return
	}

	totals, err := s.service.RevenuesAndExpensesInRange(r.Context(), userID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleNextTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var isIncome *bool
	if v := r.URL.Query().Get("isIncome"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, invalidParam("isIncome", v))
			return
		}
		isIncome = &parsed
	}

	next, err := s.service.NextTransaction(r.Context(), userID, isIncome)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	balance, err := s.service.CurrentBalance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}
