package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"ditto-builder-backend/internal/auth"
	"ditto-builder-backend/internal/handlers"
	"ditto-builder-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// --- JWT Middleware ---

// JwtAuthMiddleware verifies the widget token from the Authorization header. Browsers cannot set
// headers on WebSocket handshakes, so an access_token query parameter is accepted as well.
// If valid, it injects the widget ID into the request context.
func JwtAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(w, r)
			if !ok {
				return
			}

			claims, err := auth.ParseWidgetToken(tokenString, jwtSecret)
			if err != nil {
				log.Printf("Auth Middleware: Error parsing token: %v", err)
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					httputil.RespondError(w, http.StatusUnauthorized, "Token has expired")
				case errors.Is(err, jwt.ErrTokenMalformed):
					httputil.RespondError(w, http.StatusUnauthorized, "Malformed token")
				case errors.Is(err, auth.ErrInvalidClaims):
					httputil.RespondError(w, http.StatusUnauthorized, "Invalid token claims (missing widget ID)")
				default:
					httputil.RespondError(w, http.StatusUnauthorized, "Invalid token")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithWidgetID(r.Context(), claims.WidgetID)))
		})
	}
}

func bearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, true
		}
		log.Println("Auth Middleware: Missing Authorization header")
		httputil.RespondError(w, http.StatusUnauthorized, "Authorization header required")
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		log.Println("Auth Middleware: Malformed Authorization header")
		httputil.RespondError(w, http.StatusUnauthorized, "Malformed Authorization header (Expected: Bearer <token>)")
		return "", false
	}
	return parts[1], true
}

// RequireWidgetOwner rejects requests whose token belongs to a different widget than the URL names.
func RequireWidgetOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenWidget, ok := auth.GetWidgetIDFromContext(r.Context())
		if !ok {
			httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if chi.URLParam(r, handlers.WidgetIDParam) != tokenWidget.String() {
			log.Printf("Auth Middleware: Token for widget %s used on %s", tokenWidget, r.URL.Path)
			httputil.RespondError(w, http.StatusForbidden, "Token does not grant access to this widget")
			return
		}
		next.ServeHTTP(w, r)
	})
}
