package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORS returns middleware allowing browser clients from origins. A "*" entry
// allows any origin without credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowAny := len(origins) == 0 || slices.Contains(origins, "*")
	if allowAny {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposedHeaders:   []string{"Mcp-Session-Id"},
		AllowCredentials: !allowAny,
		MaxAge:           300,
	})
}
