// Package middleware provides HTTP middleware for the settlement API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	svcerrors "github.com/R3E-Network/rental_settlement/internal/errors"
	"github.com/R3E-Network/rental_settlement/internal/httputil"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

// Claims carried by API tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates HMAC-signed bearer tokens.
type AuthMiddleware struct {
	secret    []byte
	log       *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates the middleware. Requests to skipPaths pass through
// unauthenticated.
func NewAuthMiddleware(secret string, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		if p = strings.TrimSpace(p); p != "" {
			skip[p] = true
		}
	}
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &AuthMiddleware{secret: []byte(secret), log: log, skipPaths: skip}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			m.reject(w, r, svcerrors.Unauthorized("missing Authorization header"))
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			m.reject(w, r, svcerrors.Unauthorized("invalid Authorization header format"))
			return
		}

		claims, err := m.validateToken(token)
		if err != nil {
			m.reject(w, r, err)
			return
		}

		ctx := httputil.WithBearerToken(r.Context(), token)
		ctx = httputil.WithUserID(ctx, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) validateToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, svcerrors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, svcerrors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, svcerrors.InvalidToken(nil)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, svcerrors.InvalidToken(nil).WithDetails("reason", "token has no subject")
	}
	return claims, nil
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	m.log.WithError(err).WithField("path", r.URL.Path).WithField("method", r.Method).
		Warn("authentication failed")
	httputil.WriteError(w, err)
}
