// Package middleware contains HTTP middleware for the controller.
package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"shiftplane/pkg/api"
)

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}
