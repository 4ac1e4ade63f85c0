package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	units, err := ToBaseUnits(decimal.RequireFromString("1000.00"))
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000", units.String())

	units, err = ToBaseUnits(decimal.RequireFromString("0.000000000000000001"))
	require.NoError(t, err)
	assert.Equal(t, "1", units.String())

	_, err = ToBaseUnits(decimal.RequireFromString("0.0000000000000000001"))
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = ToBaseUnits(decimal.NewFromInt(-1))
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestParamsBuilders(t *testing.T) {
	params, err := AgreementParams("0x2", decimal.RequireFromString("1000.00"), decimal.RequireFromString("2000.50"))
	require.NoError(t, err)
	assert.Equal(t, "0x2", params["owner"])
	assert.Equal(t, "1000000000000000000000", params["rentAmount"])
	assert.Equal(t, "2000500000000000000000", params["deposit"])

	params, err = PaymentParams(5, decimal.RequireFromString("500"))
	require.NoError(t, err)
	assert.Equal(t, "5", params["agreementId"])
	assert.Equal(t, "500000000000000000000", params["amount"])
}
