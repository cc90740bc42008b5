package lifecycle

import (
	"math"
	"testing"

	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotals_BaseOnly(t *testing.T) {
	totals, err := ComputeTotals(1000, nil)
	require.NoError(t, err)
	assert.Equal(t, 50.0, totals.SystemFee)
	assert.Equal(t, 1050.0, totals.TotalAmount)
}

func TestComputeTotals_WithApprovedCharge(t *testing.T) {
	charges := []models.AdditionalCharge{{ID: "c1", Amount: 200, Status: ChargeApproved}}
	totals, err := ComputeTotals(1000, charges)
	require.NoError(t, err)

	// Fee stays on the base price only; the extra passes through fee-free.
	assert.Equal(t, 50.0, totals.SystemFee)
	assert.Equal(t, 1250.0, totals.TotalAmount)
}

func TestComputeTotals_RoundsHalfUpToCentavos(t *testing.T) {
	totals, err := ComputeTotals(999.99, nil)
	require.NoError(t, err)
	// 999.99 * 0.05 = 49.9995 rounds to 50.00
	assert.Equal(t, 50.0, totals.SystemFee)
	assert.Equal(t, 1049.99, totals.TotalAmount)

	totals, err = ComputeTotals(101.01, nil)
	require.NoError(t, err)
	// 101.01 * 0.05 = 5.0505 rounds to 5.05
	assert.Equal(t, 5.05, totals.SystemFee)
	assert.Equal(t, 106.06, totals.TotalAmount)
}

func TestComputeTotals_RejectsBadInput(t *testing.T) {
	cases := []float64{0, -10, math.NaN(), math.Inf(1)}
	for _, base := range cases {
		_, err := ComputeTotals(base, nil)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	}

	_, err := ComputeTotals(1000, []models.AdditionalCharge{{Amount: -5, Status: ChargeApproved}})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestProviderEarnings(t *testing.T) {
	earnings, err := ProviderEarnings(1000, nil)
	require.NoError(t, err)
	assert.Equal(t, 950.0, earnings)

	earnings, err = ProviderEarnings(1000, []models.AdditionalCharge{{Amount: 200, Status: ChargeApproved}})
	require.NoError(t, err)
	assert.Equal(t, 1150.0, earnings)
}
