package http

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Auth guards the admin surface: a valid HS256 bearer token carrying
// role "admin" is required on every inventory route.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				fail(w, http.StatusUnauthorized, "missing bearer token", nil)
				return
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				fail(w, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || claims["role"] != "admin" {
				fail(w, http.StatusForbidden, "admin role required", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
