package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/":                         "/",
		"/health":                   "/health",
		"/api/rentals":              "/api/rentals",
		"/api/rentals/5b0c-uuid":    "/api/rentals/:id",
		"/api/rentals/tenant/42":    "/api/rentals/tenant/:id",
		"/api/payments/rental/9/":   "/api/payments/rental/:id",
		"/api/notifications/user/3": "/api/notifications/user/:id",
	}
	for in, want := range cases {
		assert.Equal(t, want, canonicalPath(in), in)
	}
}

func TestInstrumentHandlerCountsRequests(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/rentals/:id", "404"))

	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/rentals/abc", nil))

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/rentals/:id", "404"))
	assert.Equal(t, before+1, after)
}

func TestSettlementCollectors(t *testing.T) {
	before := testutil.ToFloat64(settlementRuns.WithLabelValues("PaymentProcessing", "FAILED"))
	RecordSettlementRun("PaymentProcessing", "FAILED", 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(settlementRuns.WithLabelValues("PaymentProcessing", "FAILED")))

	RecordLedgerCall("payRent", "timeout", 0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(ledgerCalls.WithLabelValues("payRent", "timeout")), 1.0)

	SetPendingRecords(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(pendingRecords))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordStepFailure("AgreementCreation", "ledger", "BEST_EFFORT")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "rental_settlement_settlement_step_failures_total"))
}
