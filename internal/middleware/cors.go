package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns cors.Options for the admin API. The API authenticates with
// bearer tokens, never cookies, so credentials are not allowed. With no
// configured origins only same-origin requests are served.
func CORS(allowedOrigins []string) cors.Options {
	opts := cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         300,
	}
	if len(allowedOrigins) == 0 {
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	return opts
}
