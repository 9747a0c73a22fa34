package httpapi

import (
	"net/http"

	"github.com/swaggo/swag"

	_ "medmodeld/docs"
)

// serveOpenAPI writes the registered OpenAPI document.
func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "openapi document unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}
