package handlers

import (
	"encoding/json"
	"net/http"

	"bandwidth-proxy/internal/logging"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are logged; the status line has already been sent.
func (h *Handlers) writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSON(w, v, h.logger)
}

func writeJSON(w http.ResponseWriter, v interface{}, logger *logging.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func (h *Handlers) writeJSONError(w http.ResponseWriter, body ErrorResponse, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	h.writeJSON(w, body)
}
