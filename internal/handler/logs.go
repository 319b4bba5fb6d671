package handler

import (
	"net/http"
	"strings"

	"sorter/internal/dto"
	"sorter/internal/logger"
)

func validLevel(level string) bool {
	switch level {
	case logger.LevelInfo, logger.LevelWarning, logger.LevelError:
		return true
	}
	return false
}

// ShowLogsHandler serves a level's log file as text/plain. ?lines=N keeps only the
// last N lines.
func ShowLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level := r.PathValue("level")
		if !validLevel(level) {
			http.NotFound(w, r)
			return
		}

		limit := atoiDefault(r.URL.Query().Get("lines"), 0)
		if limit < 0 {
			limit = 0
		}

		lines, err := log.Tail(level, limit)
		if err != nil {
			log.Error("Error reading %s log: %v", level, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if len(lines) > 0 {
			w.Write([]byte(strings.Join(lines, "\n") + "\n"))
		}
	}
}

// ClearLogsHandler truncates a level's log file.
func ClearLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level := r.PathValue("level")
		if !validLevel(level) {
			http.NotFound(w, r)
			return
		}

		if err := log.Clean(level); err != nil {
			log.Error("Error clearing %s log: %v", level, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, dto.StatusMessage{Status: statusOK})
	}
}
