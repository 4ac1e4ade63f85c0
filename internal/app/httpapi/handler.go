// Package httpapi exposes the settlement operations and record lookups over REST.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/internal/app/metrics"
	settlementsvc "github.com/R3E-Network/rental_settlement/internal/app/services/settlement"
	"github.com/R3E-Network/rental_settlement/internal/app/storage"
	svcerrors "github.com/R3E-Network/rental_settlement/internal/errors"
	"github.com/R3E-Network/rental_settlement/internal/httputil"
	"github.com/R3E-Network/rental_settlement/internal/middleware"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

// Settlement is the orchestration surface the API drives.
type Settlement interface {
	CreateAgreement(ctx context.Context, terms settlement.AgreementTerms) (settlement.RentalAgreement, error)
	ProcessPayment(ctx context.Context, terms settlement.PaymentTerms) (settlement.PaymentTransaction, error)
}

var _ Settlement = (*settlementsvc.Service)(nil)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Dependencies wires the API to the application services.
type Dependencies struct {
	Settlement    Settlement
	Agreements    storage.AgreementStore
	Payments      storage.PaymentStore
	Notifications storage.NotificationStore
	HealthChecks  map[string]HealthCheck
	// Middleware runs inside logging and metrics, in order.
	Middleware []mux.MiddlewareFunc
}

type handler struct {
	deps     Dependencies
	validate *validator.Validate
	log      *logger.Logger
	now      func() time.Time
}

// NewHandler returns the router serving the REST API, /health and /metrics.
func NewHandler(deps Dependencies, log *logger.Logger) http.Handler {
	return newHandler(deps, log).routes()
}

func newHandler(deps Dependencies, log *logger.Logger) *handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &handler{deps: deps, validate: newValidator(), log: log, now: time.Now}
}

func (h *handler) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging(h.log))
	r.Use(metrics.InstrumentHandler)
	r.Use(h.deps.Middleware...)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rentals", h.createRental).Methods(http.MethodPost)
	api.HandleFunc("/rentals/tenant/{id}", h.rentalsByTenant).Methods(http.MethodGet)
	api.HandleFunc("/rentals/owner/{id}", h.rentalsByOwner).Methods(http.MethodGet)
	api.HandleFunc("/rentals/property/{id}", h.rentalsByProperty).Methods(http.MethodGet)
	api.HandleFunc("/rentals/{id}", h.getRental).Methods(http.MethodGet)

	api.HandleFunc("/payments", h.processPayment).Methods(http.MethodPost)
	api.HandleFunc("/payments/rental/{id}", h.paymentsByRental).Methods(http.MethodGet)
	api.HandleFunc("/payments/payer/{id}", h.paymentsByPayer).Methods(http.MethodGet)
	api.HandleFunc("/payments/payee/{id}", h.paymentsByPayee).Methods(http.MethodGet)
	api.HandleFunc("/payments/{id}", h.getPayment).Methods(http.MethodGet)

	api.HandleFunc("/notifications/user/{id}", h.notificationsByUser).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, svcerrors.NotFound("route", r.URL.Path))
	})
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps.HealthChecks))
	healthy := true
	for name, check := range h.deps.HealthChecks {
		if err := check(ctx); err != nil {
			checks[name] = "DOWN: " + err.Error()
			healthy = false
			continue
		}
		checks[name] = "UP"
	}

	if !healthy {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.Envelope{
			Status:    httputil.EnvelopeError,
			Message:   "service degraded",
			Data:      checks,
			Timestamp: time.Now().UTC(),
		})
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "service is healthy", checks)
}

// --- rentals ----------------------------------------------------------------

func (h *handler) createRental(w http.ResponseWriter, r *http.Request) {
	var req createRentalRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.WriteError(w, validationError(err))
		return
	}
	terms, err := req.terms(h.today())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	agreement, err := h.deps.Settlement.CreateAgreement(r.Context(), terms)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, "rental agreement created", agreement)
}

func (h *handler) getRental(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	agreement, err := h.deps.Agreements.GetAgreement(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, lookupError("rental agreement", id, err))
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "", agreement)
}

func (h *handler) rentalsByTenant(w http.ResponseWriter, r *http.Request) {
	listByID(w, r, "tenantId", h.deps.Agreements.ListAgreementsByTenant)
}

func (h *handler) rentalsByOwner(w http.ResponseWriter, r *http.Request) {
	listByID(w, r, "ownerId", h.deps.Agreements.ListAgreementsByOwner)
}

func (h *handler) rentalsByProperty(w http.ResponseWriter, r *http.Request) {
	listByID(w, r, "propertyId", h.deps.Agreements.ListAgreementsByProperty)
}

// --- payments ---------------------------------------------------------------

// processPayment answers 200 for FAILED payments too; the status is in the record.
func (h *handler) processPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.WriteError(w, validationError(err))
		return
	}

	payment, err := h.deps.Settlement.ProcessPayment(r.Context(), req.terms())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	message := "payment processed"
	if payment.Status == settlement.StatusFailed {
		message = "payment failed on ledger"
	}
	httputil.WriteSuccess(w, http.StatusOK, message, payment)
}

func (h *handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	payment, err := h.deps.Payments.GetPayment(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, lookupError("payment", id, err))
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "", payment)
}

func (h *handler) paymentsByRental(w http.ResponseWriter, r *http.Request) {
	listByID(w, r, "rentalId", h.deps.Payments.ListPaymentsByRental)
}

func (h *handler) paymentsByPayer(w http.ResponseWriter, r *http.Request) {
	listByID(w, r, "payerId", h.deps.Payments.ListPaymentsByPayer)
}

func (h *handler) paymentsByPayee(w http.ResponseWriter, r *http.Request) {
	listByID(w, r, "payeeId", h.deps.Payments.ListPaymentsByPayee)
}

// --- notifications ----------------------------------------------------------

func (h *handler) notificationsByUser(w http.ResponseWriter, r *http.Request) {
	if h.deps.Notifications == nil {
		httputil.WriteError(w, svcerrors.NotFound("route", r.URL.Path))
		return
	}
	listByID(w, r, "userId", h.deps.Notifications.ListNotificationsByUser)
}

// --- helpers ----------------------------------------------------------------

func listByID[T any](w http.ResponseWriter, r *http.Request, field string, list func(context.Context, int64) ([]T, error)) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, svcerrors.Validation(field+" must be a positive integer").
			WithDetails("fields", map[string]string{field: "must be a positive integer"}))
		return
	}
	items, err := list(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, svcerrors.Storage("list", err))
		return
	}
	if items == nil {
		items = []T{}
	}
	httputil.WriteSuccess(w, http.StatusOK, "", items)
}

func (h *handler) today() time.Time {
	now := h.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func lookupError(resource, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return svcerrors.NotFound(resource, id)
	}
	return svcerrors.Storage("get "+resource, err)
}
