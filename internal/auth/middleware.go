package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type ctxKey int

const sellerIDKey ctxKey = 0

// SellerID returns the authenticated seller id, or "" outside the middleware.
func SellerID(ctx context.Context) string {
	id, _ := ctx.Value(sellerIDKey).(string)
	return id
}

// Middleware rejects requests without a valid bearer token and puts the
// seller id on the context.
func Middleware(s *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" {
				unauthorized(w, "missing authorization header")
				return
			}
			sellerID, err := s.Verify(raw)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), sellerIDKey, sellerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
