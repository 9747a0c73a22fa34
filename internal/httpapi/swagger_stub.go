//go:build !swagger

package httpapi

import "github.com/go-chi/chi/v5"

// MountSwagger publishes only the OpenAPI document. Build with -tags=swagger
// for the interactive UI.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/doc.json", serveOpenAPI)
}
