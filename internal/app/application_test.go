package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/internal/config"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
	"github.com/R3E-Network/rental_settlement/pkg/testutil"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.Events.Consume = true
	cfg.Events.QueueSize = 8
	cfg.Audit.Schedule = "@every 1h"
	cfg.Audit.PendingAge = time.Minute
	cfg.Ledger.PaymentFunction = "payRent"
	return cfg
}

func TestApplicationEndToEnd(t *testing.T) {
	log := logger.NewWithOutput("app", &bytes.Buffer{})
	application, err := New(testConfig(), log, Options{Ledger: testutil.Confirming("0xabc")})
	require.NoError(t, err)

	names := make([]string, 0, len(application.Services()))
	for _, svc := range application.Services() {
		names = append(names, svc.Name())
	}
	assert.Equal(t, []string{"events-memory", "notification-consumer", "events-publisher", "pending-audit"}, names)

	ctx := context.Background()
	require.NoError(t, application.Start(ctx))

	start := time.Now().AddDate(0, 1, 0)
	body := `{"propertyId":3,"tenantId":1,"ownerId":2,"startDate":"` + start.Format("2006-01-02") +
		`","endDate":"` + start.AddDate(1, 0, 0).Format("2006-01-02") + `","monthlyRent":"1000.00","depositAmount":"2000.00"}`
	rec := httptest.NewRecorder()
	application.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rentals", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, application.Stop(stopCtx))

	notes, err := application.Stores.Notifications.ListNotificationsByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, settlement.EventRentalCreated, notes[0].Type)
}

func TestApplicationWithoutConsumer(t *testing.T) {
	cfg := testConfig()
	cfg.Events.Consume = false

	application, err := New(cfg, logger.NewWithOutput("app", &bytes.Buffer{}), Options{Ledger: testutil.Confirming("0x1")})
	require.NoError(t, err)
	assert.Nil(t, application.Notifications)
	assert.Len(t, application.Services(), 3)
}

func TestApplicationRequiresLedgerEndpoint(t *testing.T) {
	_, err := New(testConfig(), logger.NewWithOutput("app", &bytes.Buffer{}), Options{})
	assert.Error(t, err)
}

func TestApplicationAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = "secret"
	cfg.Auth.SkipPaths = []string{"/health"}

	application, err := New(cfg, logger.NewWithOutput("app", &bytes.Buffer{}), Options{Ledger: testutil.Confirming("0x1")})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	application.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rentals/tenant/1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	application.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
