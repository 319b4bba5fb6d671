package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, http.StatusOK},
		{"decode", fmt.Errorf("%w: not an image", ErrDecode), http.StatusBadRequest},
		{"config", fmt.Errorf("%w: actuator 7 out of range", ErrConfig), http.StatusBadRequest},
		{"dispatch", fmt.Errorf("%w: timeout", ErrDispatch), http.StatusBadGateway},
		{"log", fmt.Errorf("%w: disk full", ErrLog), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.expected {
				t.Errorf("HTTPStatus(%v) = %d, expected %d", tt.err, got, tt.expected)
			}
		})
	}
}
