package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/rental_settlement/internal/httputil"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, userID string, expires time.Time) string {
	t.Helper()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestAuth() *AuthMiddleware {
	return NewAuthMiddleware(testSecret, logger.NewWithOutput("auth", &bytes.Buffer{}), []string{"/health", " "})
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(httputil.UserID(r.Context()) + "|" + httputil.BearerToken(r.Context())))
	})
}

func TestAuthSkipPaths(t *testing.T) {
	m := newTestAuth()
	if len(m.skipPaths) != 1 {
		t.Fatalf("skipPaths = %d, want 1", len(m.skipPaths))
	}

	rec := httptest.NewRecorder()
	m.Handler(echoUser()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthValidToken(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "42", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/api/rentals/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newTestAuth().Handler(echoUser()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got, want := rec.Body.String(), "42|"+token; got != want {
		t.Fatalf("context = %q, want %q", got, want)
	}
}

func TestAuthSubjectFallback(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "7", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/payments/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newTestAuth().Handler(echoUser()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String()[:2] != "7|" {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
}

func TestAuthRejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "UNAUTHORIZED"},
		{"wrong scheme", "Basic abc", "UNAUTHORIZED"},
		{"garbage token", "Bearer not-a-jwt", "INVALID_TOKEN"},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "1", time.Now().Add(-time.Hour)), "INVALID_TOKEN"},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), "1", time.Now().Add(time.Hour)), "INVALID_TOKEN"},
		{"no user", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "", time.Now().Add(time.Hour)), "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/rentals", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			newTestAuth().Handler(echoUser()).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			var env struct {
				Status string `json:"status"`
				Data   struct {
					Code string `json:"code"`
				} `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if env.Status != httputil.EnvelopeError || env.Data.Code != tt.code {
				t.Fatalf("envelope = %+v, want code %s", env, tt.code)
			}
		})
	}
}

func TestAuthRejectsNoneAlgorithm(t *testing.T) {
	token := signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, "1", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/api/rentals/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newTestAuth().Handler(echoUser()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
