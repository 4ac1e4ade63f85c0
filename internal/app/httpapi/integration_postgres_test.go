//go:build integration && postgres

package httpapi

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	settlementsvc "github.com/R3E-Network/rental_settlement/internal/app/services/settlement"
	"github.com/R3E-Network/rental_settlement/internal/app/storage/postgres"
	"github.com/R3E-Network/rental_settlement/internal/platform/migrations"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
	"github.com/R3E-Network/rental_settlement/pkg/testutil"
)

// Runs an agreement through the router against a real database.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres integration")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := migrations.Up(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := postgres.New(db)
	log := logger.NewWithOutput("httpapi", &bytes.Buffer{})
	svc, err := settlementsvc.New(settlementsvc.Dependencies{
		Agreements: store,
		Payments:   store,
		Ledger:     testutil.Confirming("0xintegration"),
		Publisher:  testutil.NewEventRecorder(nil),
	}, settlementsvc.Config{}, log)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	handler := NewHandler(Dependencies{
		Settlement:    svc,
		Agreements:    store,
		Payments:      store,
		Notifications: store,
		HealthChecks:  map[string]HealthCheck{"database": db.PingContext},
	}, log)

	start := time.Now().AddDate(0, 1, 0)
	body, _ := json.Marshal(map[string]any{
		"propertyId":    11,
		"tenantId":      21,
		"ownerId":       31,
		"startDate":     start.Format(dateLayout),
		"endDate":       start.AddDate(1, 0, 0).Format(dateLayout),
		"monthlyRent":   "1250.50",
		"depositAmount": "2501.00",
	})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/rentals", bytes.NewReader(body)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected healthy database, got %d", resp.Code)
	}
}
