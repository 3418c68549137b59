package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/boundarybytes/boundarybytes/internal/audit"
)

const maxAccuracyNoteLength = 1000

type accuracyRequest struct {
	IsAccurate *bool  `json:"is_accurate"`
	Note       string `json:"note"`
}

func handleUpdateAccuracy(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.QueryLogs == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_LOGS_NOT_CONFIGURED", "query log store is not configured", false, nil)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ID", "query log id must be a UUID", false, map[string]any{"id": r.PathValue("id")})
		return
	}

	var request accuracyRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, defaultMaxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid accuracy request body", false, nil)
		return
	}
	if request.IsAccurate == nil {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "is_accurate is required", false, nil)
		return
	}
	note := strings.TrimSpace(request.Note)
	if len(note) > maxAccuracyNoteLength {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "note must be 1000 characters or fewer", false, nil)
		return
	}

	if err := deps.QueryLogs.UpdateAccuracy(r.Context(), id, *request.IsAccurate, note); err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "QUERY_LOG_NOT_FOUND", "query log not found", false, map[string]any{"id": id.String()})
			return
		}
		if deps.Logger != nil {
			deps.Logger.WarnContext(r.Context(), "accuracy_update_failed", "id", id.String(), "error", err)
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to record feedback", true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id.String(), "is_accurate": *request.IsAccurate, "note": note})
}

func handleAccuracyStats(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.QueryLogs == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_LOGS_NOT_CONFIGURED", "query log store is not configured", false, nil)
		return
	}
	stats, err := deps.QueryLogs.AccuracyStats(r.Context())
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.WarnContext(r.Context(), "accuracy_stats_failed", "error", err)
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to load accuracy statistics", true, nil)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
