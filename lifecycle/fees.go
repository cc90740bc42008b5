package lifecycle

import (
	"fmt"
	"math"

	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/shopspring/decimal"
)

// FeeRate is the platform's cut of the base service price. The fee is
// charged on the base price only; approved additional charges pass through
// to the provider fee-free.
var FeeRate = decimal.NewFromFloat(0.05)

// Totals is the derived monetary state of a booking.
type Totals struct {
	SystemFee   float64
	TotalAmount float64
}

// ComputeTotals derives systemFee and totalAmount from the base price and
// the client-approved additional charges. Every value is rounded half up to
// centavos before it leaves this function.
func ComputeTotals(basePrice float64, approvedCharges []models.AdditionalCharge) (Totals, error) {
	if math.IsNaN(basePrice) || math.IsInf(basePrice, 0) {
		return Totals{}, &ValidationError{Reason: "base price is not a number"}
	}
	if basePrice <= 0 {
		return Totals{}, &ValidationError{Reason: fmt.Sprintf("base price must be positive, got %.2f", basePrice)}
	}

	base := round2(decimal.NewFromFloat(basePrice))
	fee := round2(base.Mul(FeeRate))

	total := base.Add(fee)
	for _, c := range approvedCharges {
		if math.IsNaN(c.Amount) || math.IsInf(c.Amount, 0) || c.Amount < 0 {
			return Totals{}, &ValidationError{Reason: "additional charge amount is invalid"}
		}
		total = total.Add(round2(decimal.NewFromFloat(c.Amount)))
	}
	total = round2(total)

	feeF, _ := fee.Float64()
	totalF, _ := total.Float64()
	return Totals{SystemFee: feeF, TotalAmount: totalF}, nil
}

// ProviderEarnings is what the provider keeps of a completed booking: the
// base price less the system fee, plus approved extras in full.
func ProviderEarnings(basePrice float64, approvedCharges []models.AdditionalCharge) (float64, error) {
	if _, err := ComputeTotals(basePrice, approvedCharges); err != nil {
		return 0, err
	}
	base := round2(decimal.NewFromFloat(basePrice))
	fee := round2(base.Mul(FeeRate))
	sum := base.Sub(fee)
	for _, c := range approvedCharges {
		sum = sum.Add(round2(decimal.NewFromFloat(c.Amount)))
	}
	v, _ := round2(sum).Float64()
	return v, nil
}

// round2 rounds half away from zero to two decimal places, the uniform
// rounding policy for all peso amounts.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
