package ledger

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// BaseUnitDecimals is the number of fractional digits of the ledger's base unit.
const BaseUnitDecimals = 18

// BaseUnitScale is 10^18: one currency unit in ledger base units.
var BaseUnitScale = decimal.New(1, BaseUnitDecimals)

// ToBaseUnits converts a currency amount into integer base units. Amounts
// with more than 18 fractional digits, and negative amounts, are rejected.
func ToBaseUnits(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %s", ErrInvalidRequest, amount)
	}
	scaled := amount.Shift(BaseUnitDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s has more than %d fractional digits", ErrInvalidRequest, amount, BaseUnitDecimals)
	}
	return scaled.BigInt(), nil
}

// AgreementParams builds the createAgreement parameters.
func AgreementParams(ownerAddress string, rent, deposit decimal.Decimal) (map[string]any, error) {
	rentUnits, err := ToBaseUnits(rent)
	if err != nil {
		return nil, err
	}
	depositUnits, err := ToBaseUnits(deposit)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"owner":      ownerAddress,
		"rentAmount": rentUnits.String(),
		"deposit":    depositUnits.String(),
	}, nil
}

// PaymentParams builds the payRent / processPayment parameters.
func PaymentParams(agreementID int64, amount decimal.Decimal) (map[string]any, error) {
	units, err := ToBaseUnits(amount)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"agreementId": strconv.FormatInt(agreementID, 10),
		"amount":      units.String(),
	}, nil
}
