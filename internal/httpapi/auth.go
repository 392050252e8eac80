package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lukasbauer/samanta/internal/interrupt"
)

// Context key for the resolved session
type contextKey string

const sessionContextKey contextKey = "session"

// withSession resolves the memory session key for the request. With a JWT
// secret configured the request must carry a valid HS256 bearer token and
// its subject becomes the session key; otherwise every request shares the
// configured user name. Browsers cannot set headers on WebSocket upgrades,
// so a token query parameter is accepted as well.
func (r *Router) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.cfg.JWTSecret == "" {
			key := strings.TrimSpace(r.cfg.UserName)
			if key == "" {
				key = interrupt.AnonymousSession
			}
			ctx := context.WithValue(req.Context(), sessionContextKey, key)
			next.ServeHTTP(w, req.WithContext(ctx))
			return
		}

		tokenString := bearerToken(req)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		subject, err := r.parseSubject(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(req.Context(), sessionContextKey, subject)
		next.ServeHTTP(w, req.WithContext(ctx))
	}
}

func bearerToken(req *http.Request) string {
	if authHeader := req.Header.Get("Authorization"); authHeader != "" {
		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	return req.URL.Query().Get("token")
}

func (r *Router) parseSubject(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(r.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// sessionKey returns the session resolved by withSession.
func sessionKey(ctx context.Context) string {
	key, _ := ctx.Value(sessionContextKey).(string)
	return key
}
