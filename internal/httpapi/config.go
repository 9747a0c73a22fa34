package httpapi

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// defaultMaxBodyBytes leaves room for base64 images in vision prompts.
const defaultMaxBodyBytes int64 = 20 << 20

var maxBodyBytes = defaultMaxBodyBytes

// SetMaxBodyBytes bounds JSON request bodies; non-positive restores the default.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		n = defaultMaxBodyBytes
	}
	maxBodyBytes = n
}

var corsOrigins []string

// SetCORSOrigins enables cross-origin access for the listed origins. With no
// origins the CORS middleware is not installed.
func SetCORSOrigins(origins ...string) {
	corsOrigins = slices.DeleteFunc(slices.Clone(origins), func(o string) bool { return o == "" })
}

// corsMiddleware returns nil when CORS is disabled.
func corsMiddleware() func(http.Handler) http.Handler {
	if len(corsOrigins) == 0 {
		return nil
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id", "X-Log-Level"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}
