package server

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError is for malformed requests and genuine service faults only.
// Pipeline degradations go out as 200s with an explanation.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDegraded reports a pipeline that reached a terminal failure the
// client can act on. The transport still says 200: the request itself
// was well-formed and fully processed.
func writeDegraded(w http.ResponseWriter, reason, message string) {
	writeJSON(w, http.StatusOK, map[string]string{
		"degradation": reason,
		"message":     message,
	})
}
