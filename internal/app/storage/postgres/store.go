package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.AgreementStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// NewWithDB wraps an existing sqlx handle.
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const agreementColumns = `id, property_id, tenant_id, owner_id, start_date, end_date, monthly_rent,
	deposit_amount, currency, status, COALESCE(transaction_hash, '') AS transaction_hash, created_at, updated_at`

const paymentColumns = `id, rental_id, payer_id, payee_id, amount, currency, status,
	COALESCE(transaction_hash, '') AS transaction_hash, created_at`

const notificationColumns = `id, user_id, recipient_email, subject, message, type, status, sent_at`

// --- AgreementStore ---------------------------------------------------------

func (s *Store) CreateAgreement(ctx context.Context, a settlement.RentalAgreement) (settlement.RentalAgreement, error) {
	if err := settlement.Transition("", a.Status); err != nil {
		return settlement.RentalAgreement{}, err
	}
	a.ID = uuid.NewString()
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rental_agreements (id, property_id, tenant_id, owner_id, start_date, end_date,
			monthly_rent, deposit_amount, currency, status, transaction_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13)
	`, a.ID, a.PropertyID, a.TenantID, a.OwnerID, a.StartDate, a.EndDate,
		a.MonthlyRent, a.DepositAmount, a.Currency, a.Status, a.TransactionHash, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return settlement.RentalAgreement{}, err
	}
	return a, nil
}

// FinalizeAgreement moves a PENDING agreement to its terminal status. An
// existing transaction hash is kept.
func (s *Store) FinalizeAgreement(ctx context.Context, id string, status settlement.Status, txHash string) (settlement.RentalAgreement, error) {
	if err := settlement.Transition(settlement.StatusPending, status); err != nil {
		return settlement.RentalAgreement{}, err
	}
	if !isRecordID(id) {
		return settlement.RentalAgreement{}, storage.ErrNotFound
	}

	var a settlement.RentalAgreement
	err := s.db.GetContext(ctx, &a, `
		UPDATE rental_agreements
		SET status = $2,
			transaction_hash = COALESCE(transaction_hash, NULLIF($3, '')),
			updated_at = $4
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+agreementColumns, id, status, txHash, time.Now().UTC())
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return settlement.RentalAgreement{}, err
	}

	if _, getErr := s.GetAgreement(ctx, id); getErr != nil {
		return settlement.RentalAgreement{}, getErr
	}
	return settlement.RentalAgreement{}, storage.ErrNotPending
}

// isRecordID reports whether id can name a row; ids are uuid columns and
// anything else would fail in postgres instead of matching nothing.
func isRecordID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Store) GetAgreement(ctx context.Context, id string) (settlement.RentalAgreement, error) {
	if !isRecordID(id) {
		return settlement.RentalAgreement{}, storage.ErrNotFound
	}
	var a settlement.RentalAgreement
	err := s.db.GetContext(ctx, &a, `SELECT `+agreementColumns+` FROM rental_agreements WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return settlement.RentalAgreement{}, storage.ErrNotFound
	}
	return a, err
}

func (s *Store) ListAgreementsByTenant(ctx context.Context, tenantID int64) ([]settlement.RentalAgreement, error) {
	return s.selectAgreements(ctx, `WHERE tenant_id = $1`, tenantID)
}

func (s *Store) ListAgreementsByOwner(ctx context.Context, ownerID int64) ([]settlement.RentalAgreement, error) {
	return s.selectAgreements(ctx, `WHERE owner_id = $1`, ownerID)
}

func (s *Store) ListAgreementsByProperty(ctx context.Context, propertyID int64) ([]settlement.RentalAgreement, error) {
	return s.selectAgreements(ctx, `WHERE property_id = $1`, propertyID)
}

func (s *Store) ListStaleAgreements(ctx context.Context, olderThan time.Time) ([]settlement.RentalAgreement, error) {
	return s.selectAgreements(ctx, `WHERE status = 'PENDING' AND created_at < $1`, olderThan)
}

func (s *Store) selectAgreements(ctx context.Context, where string, args ...any) ([]settlement.RentalAgreement, error) {
	var result []settlement.RentalAgreement
	if err := s.db.SelectContext(ctx, &result, `SELECT `+agreementColumns+` FROM rental_agreements `+where+` ORDER BY created_at`, args...); err != nil {
		return nil, err
	}
	return result, nil
}

// --- PaymentStore -----------------------------------------------------------

func (s *Store) CreatePayment(ctx context.Context, p settlement.PaymentTransaction) (settlement.PaymentTransaction, error) {
	if !p.Status.Terminal() {
		return settlement.PaymentTransaction{}, fmt.Errorf("%w: got %q", storage.ErrNotTerminal, p.Status)
	}
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, rental_id, payer_id, payee_id, amount, currency, status, transaction_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
	`, p.ID, p.RentalID, p.PayerID, p.PayeeID, p.Amount, p.Currency, p.Status, p.TransactionHash, p.CreatedAt)
	if err != nil {
		return settlement.PaymentTransaction{}, err
	}
	return p, nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (settlement.PaymentTransaction, error) {
	if !isRecordID(id) {
		return settlement.PaymentTransaction{}, storage.ErrNotFound
	}
	var p settlement.PaymentTransaction
	err := s.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return settlement.PaymentTransaction{}, storage.ErrNotFound
	}
	return p, err
}

func (s *Store) ListPaymentsByRental(ctx context.Context, rentalID int64) ([]settlement.PaymentTransaction, error) {
	return s.selectPayments(ctx, `WHERE rental_id = $1`, rentalID)
}

func (s *Store) ListPaymentsByPayer(ctx context.Context, payerID int64) ([]settlement.PaymentTransaction, error) {
	return s.selectPayments(ctx, `WHERE payer_id = $1`, payerID)
}

func (s *Store) ListPaymentsByPayee(ctx context.Context, payeeID int64) ([]settlement.PaymentTransaction, error) {
	return s.selectPayments(ctx, `WHERE payee_id = $1`, payeeID)
}

func (s *Store) CountPayments(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM payments`)
	return n, err
}

func (s *Store) selectPayments(ctx context.Context, where string, args ...any) ([]settlement.PaymentTransaction, error) {
	var result []settlement.PaymentTransaction
	if err := s.db.SelectContext(ctx, &result, `SELECT `+paymentColumns+` FROM payments `+where+` ORDER BY created_at`, args...); err != nil {
		return nil, err
	}
	return result, nil
}

// --- NotificationStore ------------------------------------------------------

func (s *Store) CreateNotification(ctx context.Context, n settlement.Notification) (settlement.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (:id, :user_id, :recipient_email, :subject, :message, :type, :status, :sent_at)
	`, n)
	if err != nil {
		return settlement.Notification{}, err
	}
	return n, nil
}

func (s *Store) ListNotificationsByUser(ctx context.Context, userID int64) ([]settlement.Notification, error) {
	var result []settlement.Notification
	if err := s.db.SelectContext(ctx, &result, `SELECT `+notificationColumns+` FROM notifications WHERE user_id = $1 ORDER BY sent_at`, userID); err != nil {
		return nil, err
	}
	return result, nil
}
