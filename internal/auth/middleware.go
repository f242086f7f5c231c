package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aiox-platform/quill/internal/api"
)

type contextKey string

const AdminClaimsKey contextKey = "admin_claims"

func Middleware(tm *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			claims, err := tm.Validate(parts[1])
			if err != nil {
				slog.Debug("rejected admin token", "error", err)
				api.HandleError(w, api.ErrInvalidToken)
				return
			}

			slog.Info("admin request", "subject", claims.Subject, "method", r.Method, "path", r.URL.Path)
			ctx := context.WithValue(r.Context(), AdminClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetAdminClaims(ctx context.Context) *AdminClaims {
	claims, _ := ctx.Value(AdminClaimsKey).(*AdminClaims)
	return claims
}
