// Package settlement holds the records produced by settlement orchestration:
// rental agreements, payment transactions and the notifications they emit.
package settlement

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a settlement record.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether the status is a final state returned to callers.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// LedgerRefFailed is stored as the ledger reference when a required ledger
// call was rejected.
const LedgerRefFailed = "FAILED"

// DefaultCurrency applies when a request omits the currency tag.
const DefaultCurrency = "USD"

// Transition validates a status change. Records are written PENDING once and
// then finalized once, or written directly in a terminal state.
func Transition(from, to Status) error {
	switch {
	case from == "" && to.Valid():
		return nil
	case from == StatusPending && to.Terminal():
		return nil
	default:
		return fmt.Errorf("invalid status transition %q -> %q", from, to)
	}
}

// Kind names the business action that produced a record.
type Kind string

const (
	KindAgreementCreation Kind = "AgreementCreation"
	KindPaymentProcessing Kind = "PaymentProcessing"
)

// RentalAgreement is the settlement record created for an AgreementCreation.
type RentalAgreement struct {
	ID              string          `json:"id" db:"id"`
	PropertyID      int64           `json:"propertyId" db:"property_id"`
	TenantID        int64           `json:"tenantId" db:"tenant_id"`
	OwnerID         int64           `json:"ownerId" db:"owner_id"`
	StartDate       time.Time       `json:"startDate" db:"start_date"`
	EndDate         time.Time       `json:"endDate" db:"end_date"`
	MonthlyRent     decimal.Decimal `json:"monthlyRent" db:"monthly_rent"`
	DepositAmount   decimal.Decimal `json:"depositAmount" db:"deposit_amount"`
	Currency        string          `json:"currency" db:"currency"`
	Status          Status          `json:"status" db:"status"`
	TransactionHash string          `json:"transactionHash,omitempty" db:"transaction_hash"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// PaymentTransaction is the settlement record created for a PaymentProcessing.
type PaymentTransaction struct {
	ID              string          `json:"id" db:"id"`
	RentalID        int64           `json:"rentalId" db:"rental_id"`
	PayerID         int64           `json:"payerId" db:"payer_id"`
	PayeeID         int64           `json:"payeeId" db:"payee_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Currency        string          `json:"currency" db:"currency"`
	Status          Status          `json:"status" db:"status"`
	TransactionHash string          `json:"transactionHash,omitempty" db:"transaction_hash"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}

// AgreementTerms is the validated input of an AgreementCreation.
type AgreementTerms struct {
	PropertyID    int64
	TenantID      int64
	OwnerID       int64
	StartDate     time.Time
	EndDate       time.Time
	MonthlyRent   decimal.Decimal
	DepositAmount decimal.Decimal
	Currency      string
}

// PaymentTerms is the validated input of a PaymentProcessing.
type PaymentTerms struct {
	RentalID int64
	PayerID  int64
	PayeeID  int64
	Amount   decimal.Decimal
	Currency string
}

// Profile is the counterparty data returned by the directory.
type Profile struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Placeholder   bool   `json:"-"`
}

// PlaceholderProfile builds the deterministic stand-in used when the directory
// has no data for a party.
func PlaceholderProfile(id int64, role string) Profile {
	if role == "" {
		role = "user"
	}
	return Profile{
		ID:            id,
		Email:         role + "@example.com",
		WalletAddress: "0x" + strconv.FormatInt(id, 10),
		Placeholder:   true,
	}
}

// Address returns the wallet address, falling back to the synthetic one.
func (p Profile) Address() string {
	if p.WalletAddress != "" {
		return p.WalletAddress
	}
	return "0x" + strconv.FormatInt(p.ID, 10)
}

// EventType is the notification vocabulary consumers switch on.
type EventType string

const (
	EventRentalCreated   EventType = "RENTAL_CREATED"
	EventPaymentReceived EventType = "PAYMENT_RECEIVED"
	EventPaymentFailed   EventType = "PAYMENT_FAILED"
)

// NotificationEvent is the payload published after a settlement run.
type NotificationEvent struct {
	RecipientID    int64     `json:"recipientId"`
	RecipientEmail string    `json:"recipientEmail"`
	Subject        string    `json:"subject"`
	Message        string    `json:"message"`
	Type           EventType `json:"type"`
}

// NotificationStatus records the delivery state of a stored notification.
type NotificationStatus string

const (
	NotificationSent   NotificationStatus = "SENT"
	NotificationFailed NotificationStatus = "FAILED"
)

// Notification is a consumed NotificationEvent as stored by the notification service.
type Notification struct {
	ID             string             `json:"id" db:"id"`
	UserID         int64              `json:"userId" db:"user_id"`
	RecipientEmail string             `json:"recipientEmail" db:"recipient_email"`
	Subject        string             `json:"subject" db:"subject"`
	Message        string             `json:"message" db:"message"`
	Type           EventType          `json:"type" db:"type"`
	Status         NotificationStatus `json:"status" db:"status"`
	SentAt         time.Time          `json:"sentAt" db:"sent_at"`
}
