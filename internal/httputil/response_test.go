package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	svcerrors "github.com/R3E-Network/rental_settlement/internal/errors"
)

// =============================================================================
// Envelope Tests
// =============================================================================

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, http.StatusCreated, "created", map[string]string{"id": "a"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	env := decodeEnvelope(t, rec)
	if env.Status != EnvelopeSuccess || env.Message != "created" {
		t.Errorf("envelope = %+v", env)
	}
	if env.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"service error", svcerrors.NotFound("rental", "x"), http.StatusNotFound, string(svcerrors.CodeNotFound)},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, string(svcerrors.CodeInternal)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			env := decodeEnvelope(t, rec)
			if env.Status != EnvelopeError {
				t.Errorf("envelope status = %q, want %q", env.Status, EnvelopeError)
			}
			data, _ := env.Data.(map[string]any)
			if data["code"] != tt.code {
				t.Errorf("code = %v, want %s", data["code"], tt.code)
			}
		})
	}
}
