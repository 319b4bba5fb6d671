package handler

import (
	"net/http"

	"sorter/internal/dto"
	"sorter/internal/logger"
	"sorter/internal/repository"
)

// DetectionLogHandler returns the most recent log records, newest first.
func DetectionLogHandler(repo repository.DetectionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := repository.ClampLimit(atoiDefault(r.URL.Query().Get("limit"), repository.DefaultRecentLimit))

		records, err := repo.Recent(r.Context(), limit)
		if err != nil {
			logger.Error("Error querying detection log: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to read detection log")
			return
		}
		writeJSON(w, http.StatusOK, dto.NewLogEntries(records))
	}
}
