package handler

import (
	"encoding/json"
	"net/http"

	"sorter/internal/apperror"
	"sorter/internal/dto"
	"sorter/internal/logger"
)

// MappingStore holds the token to actuator mapping.
type MappingStore interface {
	Mapping() map[string]int
	Update(partial map[string]int) (map[string]int, error)
}

// GetMappingHandler returns the current mapping.
func GetMappingHandler(store MappingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.Mapping())
	}
}

// UpdateMappingHandler merges the posted entries into the mapping. An invalid entry
// rejects the whole update.
func UpdateMappingHandler(store MappingStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var partial map[string]int
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&partial); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid mapping")
			return
		}

		mapping, err := store.Update(partial)
		if err != nil {
			writeError(w, apperror.HTTPStatus(err), err.Error())
			return
		}

		logger.Info("Mapping updated: %v", mapping)
		writeJSON(w, http.StatusOK, dto.MappingResult{Status: statusSuccess, Mapping: mapping})
	}
}
