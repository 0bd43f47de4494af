package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
)

const maxParamLength = 200

// QueryParam returns a trimmed, length capped query value.
func QueryParam(r *http.Request, key string) string {
	return SanitizeString(r.URL.Query().Get(key), maxParamLength)
}

// PathParam returns a required URL parameter or a validation error naming it.
func PathParam(r *http.Request, key string) (string, error) {
	value := SanitizeString(chi.URLParam(r, key), maxParamLength)
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, key+" is required").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

// IfMatch returns the If-Match precondition without surrounding quotes or a
// weak prefix. "*" means no precondition.
func IfMatch(r *http.Request) string {
	value := strings.TrimSpace(r.Header.Get("If-Match"))
	value = strings.TrimPrefix(value, "W/")
	value = strings.Trim(value, `"`)
	if value == "*" {
		return ""
	}
	return value
}
