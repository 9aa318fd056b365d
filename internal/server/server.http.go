// FilePath: server/watchdog/internal/server/server.http.go
package server

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
)

// withHTTPMiddleware adds panic recovery, access logging and CORS.
func withHTTPMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(next)
	h = handlers.LoggingHandler(os.Stdout, h)
	if len(allowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(allowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(h)
	}
	return h
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
