package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"sorter/internal/apperror"
	"sorter/internal/dto"
)

const (
	statusSuccess = "success"
	statusOK      = "ok"
	statusError   = "error"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, dto.StatusMessage{Status: statusError, Message: message})
}

// writeAppError maps an apperror kind to its HTTP status. Decode failures get the
// short message clients expect; anything else carries the error text.
func writeAppError(w http.ResponseWriter, err error) {
	code := apperror.HTTPStatus(err)
	if errors.Is(err, apperror.ErrDecode) {
		writeError(w, code, "Invalid image")
		return
	}
	writeError(w, code, err.Error())
}

func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
