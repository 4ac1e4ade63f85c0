package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu            sync.RWMutex
	agreements    map[string]settlement.RentalAgreement
	payments      map[string]settlement.PaymentTransaction
	notifications map[string]settlement.Notification
	now           func() time.Time
}

var _ storage.AgreementStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		agreements:    make(map[string]settlement.RentalAgreement),
		payments:      make(map[string]settlement.PaymentTransaction),
		notifications: make(map[string]settlement.Notification),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// AgreementStore implementation ----------------------------------------------

func (s *Store) CreateAgreement(_ context.Context, agreement settlement.RentalAgreement) (settlement.RentalAgreement, error) {
	if err := settlement.Transition("", agreement.Status); err != nil {
		return settlement.RentalAgreement{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	agreement.ID = uuid.NewString()
	now := s.now()
	agreement.CreatedAt = now
	agreement.UpdatedAt = now
	s.agreements[agreement.ID] = agreement
	return agreement, nil
}

func (s *Store) FinalizeAgreement(_ context.Context, id string, status settlement.Status, txHash string) (settlement.RentalAgreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agreement, ok := s.agreements[id]
	if !ok {
		return settlement.RentalAgreement{}, storage.ErrNotFound
	}
	if agreement.Status != settlement.StatusPending {
		return settlement.RentalAgreement{}, storage.ErrNotPending
	}
	if err := settlement.Transition(agreement.Status, status); err != nil {
		return settlement.RentalAgreement{}, err
	}

	agreement.Status = status
	if agreement.TransactionHash == "" {
		agreement.TransactionHash = txHash
	}
	agreement.UpdatedAt = s.now()
	s.agreements[id] = agreement
	return agreement, nil
}

func (s *Store) GetAgreement(_ context.Context, id string) (settlement.RentalAgreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agreement, ok := s.agreements[id]
	if !ok {
		return settlement.RentalAgreement{}, storage.ErrNotFound
	}
	return agreement, nil
}

func (s *Store) ListAgreementsByTenant(_ context.Context, tenantID int64) ([]settlement.RentalAgreement, error) {
	return s.filterAgreements(func(a settlement.RentalAgreement) bool { return a.TenantID == tenantID }), nil
}

func (s *Store) ListAgreementsByOwner(_ context.Context, ownerID int64) ([]settlement.RentalAgreement, error) {
	return s.filterAgreements(func(a settlement.RentalAgreement) bool { return a.OwnerID == ownerID }), nil
}

func (s *Store) ListAgreementsByProperty(_ context.Context, propertyID int64) ([]settlement.RentalAgreement, error) {
	return s.filterAgreements(func(a settlement.RentalAgreement) bool { return a.PropertyID == propertyID }), nil
}

func (s *Store) ListStaleAgreements(_ context.Context, olderThan time.Time) ([]settlement.RentalAgreement, error) {
	return s.filterAgreements(func(a settlement.RentalAgreement) bool {
		return a.Status == settlement.StatusPending && a.CreatedAt.Before(olderThan)
	}), nil
}

func (s *Store) filterAgreements(keep func(settlement.RentalAgreement) bool) []settlement.RentalAgreement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []settlement.RentalAgreement
	for _, a := range s.agreements {
		if keep(a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

// PaymentStore implementation ------------------------------------------------

func (s *Store) CreatePayment(_ context.Context, payment settlement.PaymentTransaction) (settlement.PaymentTransaction, error) {
	if !payment.Status.Terminal() {
		return settlement.PaymentTransaction{}, fmt.Errorf("%w: got %q", storage.ErrNotTerminal, payment.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	payment.ID = uuid.NewString()
	payment.CreatedAt = s.now()
	s.payments[payment.ID] = payment
	return payment, nil
}

func (s *Store) GetPayment(_ context.Context, id string) (settlement.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payment, ok := s.payments[id]
	if !ok {
		return settlement.PaymentTransaction{}, storage.ErrNotFound
	}
	return payment, nil
}

func (s *Store) ListPaymentsByRental(_ context.Context, rentalID int64) ([]settlement.PaymentTransaction, error) {
	return s.filterPayments(func(p settlement.PaymentTransaction) bool { return p.RentalID == rentalID }), nil
}

func (s *Store) ListPaymentsByPayer(_ context.Context, payerID int64) ([]settlement.PaymentTransaction, error) {
	return s.filterPayments(func(p settlement.PaymentTransaction) bool { return p.PayerID == payerID }), nil
}

func (s *Store) ListPaymentsByPayee(_ context.Context, payeeID int64) ([]settlement.PaymentTransaction, error) {
	return s.filterPayments(func(p settlement.PaymentTransaction) bool { return p.PayeeID == payeeID }), nil
}

func (s *Store) CountPayments(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payments), nil
}

func (s *Store) filterPayments(keep func(settlement.PaymentTransaction) bool) []settlement.PaymentTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []settlement.PaymentTransaction
	for _, p := range s.payments {
		if keep(p) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

// NotificationStore implementation -------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n settlement.Notification) (settlement.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.SentAt.IsZero() {
		n.SentAt = s.now()
	}
	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) ListNotificationsByUser(_ context.Context, userID int64) ([]settlement.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []settlement.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SentAt.Before(result[j].SentAt) })
	return result, nil
}
