// Package handlers agrupa os handlers HTTP da aplicação protegida pelo throttle.
package handlers

import (
	"encoding/json"
	"net/http"
)

// PingHandler responde com uma mensagem simples para verificar o throttle.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Request successful"})
}

// HealthHandler informa se o throttling está ativo neste processo.
func HealthHandler(throttlingEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "healthy",
			"throttling": throttlingEnabled,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
