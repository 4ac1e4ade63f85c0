package settlement

import (
	"strings"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	svcerrors "github.com/R3E-Network/rental_settlement/internal/errors"
	"github.com/R3E-Network/rental_settlement/internal/ledger"
)

func validateAgreement(t settlement.AgreementTerms) error {
	var problems []string
	if t.PropertyID <= 0 {
		problems = append(problems, "propertyId must be positive")
	}
	if t.TenantID <= 0 {
		problems = append(problems, "tenantId must be positive")
	}
	if t.OwnerID <= 0 {
		problems = append(problems, "ownerId must be positive")
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		problems = append(problems, "startDate and endDate are required")
	} else if !t.EndDate.After(t.StartDate) {
		problems = append(problems, "endDate must be after startDate")
	}
	if !t.MonthlyRent.IsPositive() {
		problems = append(problems, "monthlyRent must be positive")
	} else if _, err := ledger.ToBaseUnits(t.MonthlyRent); err != nil {
		problems = append(problems, "monthlyRent has too many decimal places")
	}
	if !t.DepositAmount.IsPositive() {
		problems = append(problems, "depositAmount must be positive")
	} else if _, err := ledger.ToBaseUnits(t.DepositAmount); err != nil {
		problems = append(problems, "depositAmount has too many decimal places")
	}
	return asValidation(problems)
}

func validatePayment(t settlement.PaymentTerms) error {
	var problems []string
	if t.RentalID <= 0 {
		problems = append(problems, "rentalId must be positive")
	}
	if t.PayerID <= 0 {
		problems = append(problems, "payerId must be positive")
	}
	if t.PayeeID <= 0 {
		problems = append(problems, "payeeId must be positive")
	}
	if !t.Amount.IsPositive() {
		problems = append(problems, "amount must be positive")
	} else if _, err := ledger.ToBaseUnits(t.Amount); err != nil {
		problems = append(problems, "amount has too many decimal places")
	}
	return asValidation(problems)
}

func asValidation(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return svcerrors.Validation(strings.Join(problems, "; ")).WithDetails("fields", problems)
}
