package sale_order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raccolta/internal/core/apperror"
	"raccolta/internal/core/types"
)

func TestRecalculateTotals(t *testing.T) {
	o := NewOrder(7, "AG007", 42)
	o.AddLine(Line{ProductID: 1, Quantity: types.NewQuantityFromInt(2), PriceUnit: types.MustMoney("10")})
	o.RecalculateTotals(types.MustMoney("0.22"))

	assert.True(t, types.MustMoney("20").Equal(o.AmountUntaxed))
	assert.True(t, types.MustMoney("4.4").Equal(o.AmountTax))
	assert.True(t, types.MustMoney("24.4").Equal(o.AmountTotal))
	assert.Equal(t, 1, o.Lines[0].Sequence)
	assert.NotEmpty(t, o.Lines[0].LocalID)
}

func TestRecalculateTotalsWithDiscount(t *testing.T) {
	o := NewOrder(7, "AG007", 42)
	o.AddLine(Line{ProductID: 1, Quantity: types.NewQuantityFromInt(3), PriceUnit: types.MustMoney("5.50"), Discount: types.MustMoney("10")})
	o.AddLine(Line{ProductID: 2, Quantity: types.NewQuantityFromInt(1), PriceUnit: types.MustMoney("0.15")})
	o.RecalculateTotals(types.MustMoney("0.22"))

	assert.True(t, types.MustMoney("15").Equal(o.AmountUntaxed), o.AmountUntaxed.String())
	assert.True(t, types.MustMoney("3.3").Equal(o.AmountTax), o.AmountTax.String())
	assert.Equal(t, 2, o.Lines[1].Sequence)
}

func TestConfirm(t *testing.T) {
	o := NewOrder(7, "AG007", 42)
	require.NoError(t, o.Confirm())
	assert.Equal(t, StateConfirmed, o.State)
	assert.Equal(t, 2, o.Version)

	err := o.Confirm()
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

func TestValidate(t *testing.T) {
	o := NewOrder(7, "AG007", 0)
	assert.True(t, apperror.IsValidation(o.Validate(context.Background())))

	o.PartnerID = 42
	assert.Error(t, o.Validate(context.Background()))

	o.AddLine(Line{ProductID: 1, Quantity: types.NewQuantityFromInt(1)})
	assert.NoError(t, o.Validate(context.Background()))
}
