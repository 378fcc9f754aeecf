package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "fracmarket/pkg/domain"
	"fracmarket/pkg/requestcontext"
)

// JWTValidator defines the interface for validating bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims carries the claims the marketplace needs from a token.
type JWTClaims struct {
	// Account is the ledger account the caller acts as.
	Account string
}

// RequireAuth rejects requests without a valid bearer token and attaches the
// caller's account to the context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeUnauthorized(w, "Missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			account, err := id.ParseAccountID(claims.Account)
			if err != nil {
				writeUnauthorized(w, "Token subject is not a valid account")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, account)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
