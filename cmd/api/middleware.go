package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"moneylend/pkg/models"
	"moneylend/pkg/store"
)

type contextKey string

const callerKey contextKey = "caller"

// callerFromContext returns the authenticated user attached by requireRole,
// or nil for unauthenticated requests.
func callerFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(callerKey).(*models.User)
	return user
}

// requireRole verifies the bearer token, loads the user it names, and checks
// the role before running the handler.
func (s *Server) requireRole(role models.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims, err := s.tokens.Verify(tokenString)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate token")
			return
		}

		user, err := s.storage.GetUserByEmail(claims.Email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeDetail(w, http.StatusNotFound, "User not found")
				return
			}
			log.Printf("Error loading user %s: %v", claims.Email, err)
			writeDetail(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if user.Role != role {
			writeDetail(w, http.StatusForbidden, "Insufficient permissions")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), callerKey, user)))
	}
}

// requestIDMiddleware tags every request with an id for log correlation.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		log.Printf("%s %s request_id=%s", r.Method, r.URL.Path, requestID)
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware answers preflight requests and sets CORS headers so the
// browser frontend can talk to the API.
func corsMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			if !limiter.Allow(ip) {
				writeDetail(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
