package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"zlotowka/internal/core"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// parseUserID extracts the user ID path parameter.
func parseUserID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, invalidParam("id", raw)
	}
	return id, nil
}

// parseDateParam parses a required YYYY-MM-DD query parameter.
func parseDateParam(r *http.Request, name string) (core.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return core.Date{}, fmt.Errorf("missing query parameter %q: %w", name, core.ErrInvalidArgument)
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, invalidParam(name, raw)
	}
	return d, nil
}

func invalidParam(name, value string) error {
	return fmt.Errorf("invalid parameter %q=%q: %w", name, value, core.ErrInvalidArgument)
}

func projectionCacheKey(userID int64, start, end core.Date) string {
	return strconv.FormatInt(userID, 10) + "|" + start.String() + "|" + end.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidPeriod):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"url", r.URL.Path,
			"error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
