package httpapi

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	svcerrors "github.com/R3E-Network/rental_settlement/internal/errors"
)

const dateLayout = "2006-01-02"

type createRentalRequest struct {
	PropertyID    int64           `json:"propertyId" validate:"required,gt=0"`
	TenantID      int64           `json:"tenantId" validate:"required,gt=0"`
	OwnerID       int64           `json:"ownerId" validate:"required,gt=0"`
	StartDate     string          `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate       string          `json:"endDate" validate:"required,datetime=2006-01-02"`
	MonthlyRent   decimal.Decimal `json:"monthlyRent" validate:"gt=0"`
	DepositAmount decimal.Decimal `json:"depositAmount" validate:"gt=0"`
	Currency      string          `json:"currency" validate:"omitempty,len=3,alpha"`
}

type processPaymentRequest struct {
	RentalID int64           `json:"rentalId" validate:"required,gt=0"`
	PayerID  int64           `json:"payerId" validate:"required,gt=0"`
	PayeeID  int64           `json:"payeeId" validate:"required,gt=0"`
	Amount   decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency string          `json:"currency" validate:"omitempty,len=3,alpha"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validationError turns validator output into a ServiceError with per-field messages.
func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return svcerrors.Validation(err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return svcerrors.Validation("request validation failed").WithDetails("fields", fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be positive"
	case "datetime":
		return "must be a date formatted YYYY-MM-DD"
	case "len", "alpha":
		return "must be a three letter currency code"
	default:
		return "is invalid"
	}
}

func (r createRentalRequest) terms(today time.Time) (settlement.AgreementTerms, error) {
	start, _ := time.Parse(dateLayout, r.StartDate)
	end, _ := time.Parse(dateLayout, r.EndDate)

	fields := map[string]string{}
	if !start.After(today) {
		fields["startDate"] = "must be in the future"
	}
	if !end.After(today) {
		fields["endDate"] = "must be in the future"
	} else if !end.After(start) {
		fields["endDate"] = "must be after startDate"
	}
	if len(fields) > 0 {
		return settlement.AgreementTerms{}, svcerrors.Validation("request validation failed").WithDetails("fields", fields)
	}

	return settlement.AgreementTerms{
		PropertyID:    r.PropertyID,
		TenantID:      r.TenantID,
		OwnerID:       r.OwnerID,
		StartDate:     start,
		EndDate:       end,
		MonthlyRent:   r.MonthlyRent,
		DepositAmount: r.DepositAmount,
		Currency:      currencyOrDefault(r.Currency),
	}, nil
}

func (r processPaymentRequest) terms() settlement.PaymentTerms {
	return settlement.PaymentTerms{
		RentalID: r.RentalID,
		PayerID:  r.PayerID,
		PayeeID:  r.PayeeID,
		Amount:   r.Amount,
		Currency: currencyOrDefault(r.Currency),
	}
}

func currencyOrDefault(c string) string {
	if c == "" {
		return settlement.DefaultCurrency
	}
	return strings.ToUpper(c)
}
