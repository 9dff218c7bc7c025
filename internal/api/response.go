package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Pre-marshaled fallback body so a JSON encoding failure can never leave the
// webhook without a valid response.
var fallbackErrorBody []byte

func init() {
	var err error
	fallbackErrorBody, err = json.Marshal(safeErrorResponse())
	if err != nil {
		panic(fmt.Sprintf("failed to marshal fallback webhook response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response with the given status code,
// substituting the pre-marshaled fallback body on encoding failure.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response any) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("api.writeJSONResponse: failed to marshal response", "error", err)
		jsonData = fallbackErrorBody
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("api.writeJSONResponse: failed to write response", "error", writeErr)
	}
}
