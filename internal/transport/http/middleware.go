package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/anivouch/anivouch/internal/apperrors"
	"github.com/anivouch/anivouch/internal/ratelimit"
)

// userClaims holds the authenticated user's information from the JWT.
type userClaims struct {
	UserID   uuid.UUID
	Email    string
	Username string
}

type contextKey string

const userClaimsKey contextKey = "user_claims"

func setUserClaims(ctx context.Context, claims *userClaims) context.Context {
	return context.WithValue(ctx, userClaimsKey, claims)
}

func getUserClaims(ctx context.Context) *userClaims {
	if claims, ok := ctx.Value(userClaimsKey).(*userClaims); ok {
		return claims
	}
	return nil
}

// authMiddleware validates JWT tokens and sets user claims in context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeError(w, apperrors.New("Unauthorized", http.StatusUnauthorized), map[string]any{
				"operation": "auth_middleware",
			})
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			s.writeError(w, apperrors.New("Unauthorized", http.StatusUnauthorized), map[string]any{
				"operation": "auth_middleware",
			})
			return
		}

		claims, err := s.authService.ValidateToken(r.Context(), parts[1])
		if err != nil {
			s.writeError(w, apperrors.New("Invalid or expired token", http.StatusUnauthorized), map[string]any{
				"operation": "auth_middleware",
			})
			return
		}

		ctx := setUserClaims(r.Context(), &userClaims{
			UserID:   claims.UserID,
			Email:    claims.Email,
			Username: claims.Username,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit enforces the fixed-window limiter for one route class. The
// identifier couples client IP with the class so exhausting the auth budget
// does not also exhaust the general API budget.
func (s *Server) rateLimit(limiter *ratelimit.Limiter, routeClass string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := limiter.Check(getClientIP(r) + ":" + routeClass)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				s.metrics.RateLimitDenials.WithLabelValues(routeClass).Inc()
				s.writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	// Try X-Forwarded-For first (set by proxies/load balancers)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Get the first IP (client)
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// Fall back to X-Real-IP
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}
