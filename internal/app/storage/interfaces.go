package storage

import (
	"context"
	"errors"
	"time"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNotPending is returned when finalizing a record that already left PENDING.
	ErrNotPending = errors.New("record is not pending")
	// ErrNotTerminal is returned when a payment is written in a non-terminal status.
	ErrNotTerminal = errors.New("payments are written in a terminal status")
)

// AgreementStore persists rental agreements. CreateAgreement assigns the
// identity and is atomic; FinalizeAgreement performs the single terminal write.
type AgreementStore interface {
	CreateAgreement(ctx context.Context, agreement settlement.RentalAgreement) (settlement.RentalAgreement, error)
	FinalizeAgreement(ctx context.Context, id string, status settlement.Status, txHash string) (settlement.RentalAgreement, error)
	GetAgreement(ctx context.Context, id string) (settlement.RentalAgreement, error)
	ListAgreementsByTenant(ctx context.Context, tenantID int64) ([]settlement.RentalAgreement, error)
	ListAgreementsByOwner(ctx context.Context, ownerID int64) ([]settlement.RentalAgreement, error)
	ListAgreementsByProperty(ctx context.Context, propertyID int64) ([]settlement.RentalAgreement, error)
	ListStaleAgreements(ctx context.Context, olderThan time.Time) ([]settlement.RentalAgreement, error)
}

// PaymentStore persists payment transactions. Payments are written once, in a
// terminal state.
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment settlement.PaymentTransaction) (settlement.PaymentTransaction, error)
	GetPayment(ctx context.Context, id string) (settlement.PaymentTransaction, error)
	ListPaymentsByRental(ctx context.Context, rentalID int64) ([]settlement.PaymentTransaction, error)
	ListPaymentsByPayer(ctx context.Context, payerID int64) ([]settlement.PaymentTransaction, error)
	ListPaymentsByPayee(ctx context.Context, payeeID int64) ([]settlement.PaymentTransaction, error)
	CountPayments(ctx context.Context) (int, error)
}

// NotificationStore persists consumed notification events.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n settlement.Notification) (settlement.Notification, error)
	ListNotificationsByUser(ctx context.Context, userID int64) ([]settlement.Notification, error)
}
