// Package settlement runs the settlement workflows for rental agreements and
// rent payments: directory lookup, local persistence, the ledger call and the
// notification, each under the policy its plan declares.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/internal/app/metrics"
	"github.com/R3E-Network/rental_settlement/internal/app/storage"
	"github.com/R3E-Network/rental_settlement/internal/directory"
	svcerrors "github.com/R3E-Network/rental_settlement/internal/errors"
	"github.com/R3E-Network/rental_settlement/internal/events"
	"github.com/R3E-Network/rental_settlement/internal/ledger"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

// Ledger is the port to the ledger gateway. Implementations report every
// failure as ledger.Rejected.
type Ledger interface {
	Execute(ctx context.Context, fn ledger.Function, params map[string]any) ledger.Result
}

// Dependencies are the collaborators of a Service.
type Dependencies struct {
	Agreements storage.AgreementStore
	Payments   storage.PaymentStore
	Ledger     Ledger
	Directory  directory.Directory
	Publisher  events.Publisher
}

// Config holds static orchestration settings.
type Config struct {
	// PaymentFunction is the ledger function used for payments.
	PaymentFunction ledger.Function
}

// Service orchestrates settlement runs.
type Service struct {
	agreements storage.AgreementStore
	payments   storage.PaymentStore
	ledger     Ledger
	directory  directory.Directory
	publisher  events.Publisher
	paymentFn  ledger.Function
	log        *logger.Logger
}

// New creates a Service. Stores and ledger are mandatory; a missing directory
// always resolves placeholders and a missing publisher drops events.
func New(deps Dependencies, cfg Config, log *logger.Logger) (*Service, error) {
	if deps.Agreements == nil || deps.Payments == nil {
		return nil, errors.New("settlement: agreement and payment stores are required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("settlement: ledger gateway is required")
	}
	fn := cfg.PaymentFunction
	if fn == "" {
		fn = ledger.FunctionPayRent
	}
	if fn != ledger.FunctionPayRent && fn != ledger.FunctionProcessPayment {
		return nil, fmt.Errorf("settlement: %q is not a payment function", fn)
	}
	if deps.Directory == nil {
		deps.Directory = directory.Absent
	}
	if log == nil {
		log = logger.NewDefault("settlement")
	}
	return &Service{
		agreements: deps.Agreements,
		payments:   deps.Payments,
		ledger:     deps.Ledger,
		directory:  deps.Directory,
		publisher:  deps.Publisher,
		paymentFn:  fn,
		log:        log,
	}, nil
}

// ErrPlaceholderProfile marks a directory lookup that fell back to placeholders.
var ErrPlaceholderProfile = errors.New("directory profile absent; using placeholder")

// CreateAgreement runs AgreementCreation and returns the finalized agreement.
func (s *Service) CreateAgreement(ctx context.Context, terms settlement.AgreementTerms) (agreement settlement.RentalAgreement, err error) {
	plan := AgreementPlan
	start := time.Now()
	defer func() { recordRun(plan, agreement.Status, err, start) }()

	if err := validateAgreement(terms); err != nil {
		return settlement.RentalAgreement{}, err
	}
	if terms.Currency == "" {
		terms.Currency = settlement.DefaultCurrency
	}
	log := s.log.WithFields(logrus.Fields{
		"kind":        plan.Kind,
		"property_id": terms.PropertyID,
		"tenant_id":   terms.TenantID,
		"owner_id":    terms.OwnerID,
	})

	tenant, owner := s.lookup(ctx, plan, log, terms.TenantID, "tenant", terms.OwnerID, "owner")

	if err := ctx.Err(); err != nil {
		return settlement.RentalAgreement{}, err
	}
	pending, err := s.agreements.CreateAgreement(ctx, settlement.RentalAgreement{
		PropertyID:    terms.PropertyID,
		TenantID:      terms.TenantID,
		OwnerID:       terms.OwnerID,
		StartDate:     terms.StartDate,
		EndDate:       terms.EndDate,
		MonthlyRent:   terms.MonthlyRent,
		DepositAmount: terms.DepositAmount,
		Currency:      terms.Currency,
		Status:        settlement.StatusPending,
	})
	if out := s.absorb(plan, log, Outcome{Step: StepPersistInitial, Policy: plan.Policy(StepPersistInitial), Err: err}); out != nil {
		return settlement.RentalAgreement{}, svcerrors.Storage("create agreement", out)
	}
	log = log.WithField("agreement_id", pending.ID)

	// The local record exists; finish the run even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	var result ledger.Result
	params, err := ledger.AgreementParams(owner.Address(), terms.MonthlyRent, terms.DepositAmount)
	if err != nil {
		result = ledger.Rejected{Kind: ledger.FailureInvalid, Reason: err.Error()}
	} else {
		result = s.ledger.Execute(ctx, ledger.FunctionCreateAgreement, params)
	}
	res := s.resolve(plan, log, result)

	final, err := s.agreements.FinalizeAgreement(ctx, pending.ID, res.Status, res.LedgerRef)
	if out := s.absorb(plan, log, Outcome{Step: StepPersistFinal, Policy: plan.Policy(StepPersistFinal), Err: err}); out != nil {
		log.WithError(out).Error("agreement left PENDING: final write failed")
		return settlement.RentalAgreement{}, svcerrors.Storage("finalize agreement", out)
	}

	s.publish(ctx, plan, log, settlement.NotificationEvent{
		RecipientID:    final.TenantID,
		RecipientEmail: tenant.Email,
		Subject:        "Rental Agreement Created",
		Message:        fmt.Sprintf("Your rental agreement for property %d has been created.", final.PropertyID),
		Type:           settlement.EventRentalCreated,
	})

	log.WithFields(logrus.Fields{"status": final.Status, "tx_hash": final.TransactionHash}).Info("agreement settled")
	return final, nil
}

// ProcessPayment runs PaymentProcessing. A ledger rejection produces a FAILED
// record and no error.
func (s *Service) ProcessPayment(ctx context.Context, terms settlement.PaymentTerms) (payment settlement.PaymentTransaction, err error) {
	plan := PaymentPlan
	start := time.Now()
	defer func() { recordRun(plan, payment.Status, err, start) }()

	if err := validatePayment(terms); err != nil {
		return settlement.PaymentTransaction{}, err
	}
	if terms.Currency == "" {
		terms.Currency = settlement.DefaultCurrency
	}
	log := s.log.WithFields(logrus.Fields{
		"kind":      plan.Kind,
		"rental_id": terms.RentalID,
		"payer_id":  terms.PayerID,
		"payee_id":  terms.PayeeID,
	})

	payer, payee := s.lookup(ctx, plan, log, terms.PayerID, "payer", terms.PayeeID, "payee")

	if err := ctx.Err(); err != nil {
		return settlement.PaymentTransaction{}, err
	}
	// From here the ledger may move funds; the record must be written.
	ctx = context.WithoutCancel(ctx)

	var result ledger.Result
	params, err := ledger.PaymentParams(terms.RentalID, terms.Amount)
	if err != nil {
		result = ledger.Rejected{Kind: ledger.FailureInvalid, Reason: err.Error()}
	} else {
		result = s.ledger.Execute(ctx, s.paymentFn, params)
	}
	res := s.resolve(plan, log, result)

	saved, err := s.payments.CreatePayment(ctx, settlement.PaymentTransaction{
		RentalID:        terms.RentalID,
		PayerID:         terms.PayerID,
		PayeeID:         terms.PayeeID,
		Amount:          terms.Amount,
		Currency:        terms.Currency,
		Status:          res.Status,
		TransactionHash: res.LedgerRef,
	})
	if out := s.absorb(plan, log, Outcome{Step: StepPersistFinal, Policy: plan.Policy(StepPersistFinal), Err: err}); out != nil {
		log.WithError(out).WithField("ledger_ref", res.LedgerRef).Error("payment not recorded")
		return settlement.PaymentTransaction{}, svcerrors.Storage("record payment", out)
	}

	s.publish(ctx, plan, log, paymentEvent(saved, payer, payee))

	log.WithFields(logrus.Fields{
		"payment_id": saved.ID,
		"status":     saved.Status,
		"tx_hash":    saved.TransactionHash,
	}).Info("payment settled")
	return saved, nil
}

// runAborted labels runs that returned an error instead of a record.
const runAborted = "ABORTED"

func recordRun(plan Plan, status settlement.Status, err error, start time.Time) {
	label := string(status)
	if err != nil || label == "" {
		label = runAborted
	}
	metrics.RecordSettlementRun(string(plan.Kind), label, time.Since(start))
}

func paymentEvent(p settlement.PaymentTransaction, payer, payee settlement.Profile) settlement.NotificationEvent {
	amount := p.Amount.StringFixed(2) + " " + p.Currency
	if p.Status == settlement.StatusCompleted {
		return settlement.NotificationEvent{
			RecipientID:    p.PayeeID,
			RecipientEmail: payee.Email,
			Subject:        "Payment Received",
			Message:        fmt.Sprintf("You have received a payment of %s for rental %d.", amount, p.RentalID),
			Type:           settlement.EventPaymentReceived,
		}
	}
	return settlement.NotificationEvent{
		RecipientID:    p.PayerID,
		RecipientEmail: payer.Email,
		Subject:        "Payment Failed",
		Message:        fmt.Sprintf("Your payment of %s for rental %d could not be settled.", amount, p.RentalID),
		Type:           settlement.EventPaymentFailed,
	}
}

// lookup resolves both parties. Absent profiles become placeholders.
func (s *Service) lookup(ctx context.Context, plan Plan, log *logrus.Entry, firstID int64, firstRole string, secondID int64, secondRole string) (settlement.Profile, settlement.Profile) {
	first := directory.Resolve(ctx, s.directory, firstID, firstRole)
	second := directory.Resolve(ctx, s.directory, secondID, secondRole)

	var err error
	if first.Placeholder || second.Placeholder {
		err = fmt.Errorf("%w (%s=%t, %s=%t)", ErrPlaceholderProfile, firstRole, first.Placeholder, secondRole, second.Placeholder)
	}
	s.absorb(plan, log, Outcome{Step: StepDirectoryLookup, Policy: plan.Policy(StepDirectoryLookup), Err: err})
	return first, second
}

// resolve applies the plan's ledger policy to result.
func (s *Service) resolve(plan Plan, log *logrus.Entry, result ledger.Result) Resolution {
	policy := plan.Policy(StepLedger)
	if rejected, ok := result.(ledger.Rejected); ok {
		s.absorb(plan, log, Outcome{
			Step:   StepLedger,
			Policy: policy,
			Err:    fmt.Errorf("ledger rejected (%s): %s", rejected.Kind, rejected.Reason),
		})
	}
	return Resolve(policy, result)
}

// publish hands the event to the publisher; it never waits for delivery and
// its failure never reaches the caller.
func (s *Service) publish(ctx context.Context, plan Plan, log *logrus.Entry, event settlement.NotificationEvent) {
	var err error
	if s.publisher == nil {
		err = errors.New("no event publisher configured")
	} else {
		err = s.publisher.Publish(ctx, event)
	}
	s.absorb(plan, log, Outcome{Step: StepPublish, Policy: plan.Policy(StepPublish), Err: err})
}

// absorb logs and meters a failed step. It returns the error only when the
// failure is fatal to the run.
func (s *Service) absorb(plan Plan, log *logrus.Entry, out Outcome) error {
	if !out.Failed() {
		return nil
	}
	metrics.RecordStepFailure(string(plan.Kind), string(out.Step), string(out.Policy))
	entry := log.WithError(out.Err).WithFields(logrus.Fields{"step": out.Step, "policy": out.Policy})
	if out.Fatal() {
		entry.Error("required settlement step failed")
		return out.Err
	}
	entry.Warn("settlement step failed; continuing")
	return nil
}
