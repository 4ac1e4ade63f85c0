package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	svcerrors "github.com/R3E-Network/rental_settlement/internal/errors"
)

// Envelope status values.
const (
	EnvelopeSuccess = "success"
	EnvelopeError   = "error"
)

// MaxRequestBody bounds JSON request bodies.
const MaxRequestBody = 1 << 20

// Envelope is the body of every API response.
type Envelope struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteJSON writes data as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess wraps data in a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{
		Status:    EnvelopeSuccess,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// WriteError answers with an error envelope. ServiceErrors keep their status,
// code and details; anything else becomes a 500 with a generic message.
func WriteError(w http.ResponseWriter, err error) {
	var se *svcerrors.ServiceError
	if !errors.As(err, &se) {
		se = svcerrors.Internal("internal error", err)
	}

	data := map[string]any{"code": se.Code}
	if len(se.Details) > 0 {
		data["details"] = se.Details
	}
	WriteJSON(w, svcerrors.HTTPStatusOf(se), Envelope{
		Status:    EnvelopeError,
		Message:   se.Message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// DecodeJSON decodes a bounded request body, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return svcerrors.Validation("malformed request body: " + err.Error())
	}
	return nil
}
