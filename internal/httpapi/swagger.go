//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

// MountSwagger serves the OpenAPI document and the Swagger UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/doc.json", serveOpenAPI)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
